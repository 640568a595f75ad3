package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bengkel/internal/clock"
	mechanicdomain "github.com/smallbiznis/bengkel/internal/mechanic/domain"
	obsmetrics "github.com/smallbiznis/bengkel/internal/observability/metrics"
	performancedomain "github.com/smallbiznis/bengkel/internal/performance/domain"
	workorderdomain "github.com/smallbiznis/bengkel/internal/workorder/domain"
	pkgdb "github.com/smallbiznis/bengkel/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Ledger workorderdomain.Ledger
	Roster mechanicdomain.Service
	Config *ReconcileConfigSource `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	ledger workorderdomain.Ledger
	roster mechanicdomain.Service
	cfg    *ReconcileConfigSource
}

func NewService(p Params) performancedomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("performance.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		ledger: p.Ledger,
		roster: p.Roster,
		cfg:    p.Config,
	}
}

// ProvisionAggregate returns the existing cumulative aggregate or creates a
// zeroed one. Concurrent provisioning resolves through the unique index on
// cumulative rows.
func (s *Service) ProvisionAggregate(ctx context.Context, mechanicID snowflake.ID) (*performancedomain.MechanicPerformance, error) {
	if _, err := s.roster.Get(ctx, mechanicID); err != nil {
		return nil, err
	}

	existing, err := s.getCumulative(ctx, mechanicID)
	if err != nil {
		return nil, classify(err)
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now().UTC()
	aggregate := &performancedomain.MechanicPerformance{
		ID:             s.genID.Generate(),
		MechanicID:     mechanicID,
		IsCumulative:   true,
		ServicesCount:  0,
		TotalLaborCost: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.db.WithContext(ctx).Create(aggregate).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			// Lost the provisioning race; the winner's row is the aggregate.
			return s.GetAggregate(ctx, mechanicID)
		}
		return nil, classify(err)
	}
	return aggregate, nil
}

// Recalculate restores the ledger invariant for one mechanic under a single
// transaction. The aggregate row stays locked while the ledger is summed so
// concurrent recomputations serialize instead of interleaving writes.
func (s *Service) Recalculate(ctx context.Context, mechanicID snowflake.ID) (*performancedomain.MechanicPerformance, error) {
	var updated *performancedomain.MechanicPerformance

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		aggregate, err := s.lockCumulative(ctx, tx, mechanicID)
		if err != nil {
			return err
		}
		if aggregate == nil {
			return performancedomain.ErrAggregateNotFound
		}

		summary, err := s.ledger.SumCompletedLabor(ctx, tx, mechanicID, aggregate.PeriodResetAt)
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		if err := tx.WithContext(ctx).Exec(
			`UPDATE mechanic_performances
			 SET services_count = ?,
			     total_labor_cost = ?,
			     last_calculated_at = ?,
			     updated_at = ?
			 WHERE id = ?`,
			summary.ServicesCount,
			summary.TotalLaborCost,
			now,
			now,
			aggregate.ID,
		).Error; err != nil {
			return err
		}

		var fresh performancedomain.MechanicPerformance
		if err := tx.WithContext(ctx).First(&fresh, "id = ?", aggregate.ID).Error; err != nil {
			return err
		}

		s.log.Info("aggregate recalculated",
			zap.String("mechanic_id", mechanicID.String()),
			zap.Int64("prior_services_count", aggregate.ServicesCount),
			zap.String("prior_total_labor_cost", aggregate.TotalLaborCost.String()),
			zap.Int64("services_count", fresh.ServicesCount),
			zap.String("total_labor_cost", fresh.TotalLaborCost.String()),
		)

		updated = &fresh
		return nil
	})
	if err != nil {
		err = classify(err)
		obsmetrics.Performance().IncRecalculation(recalcOutcome(err))
		s.log.Warn("aggregate recalculation failed",
			zap.String("mechanic_id", mechanicID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	obsmetrics.Performance().IncRecalculation(obsmetrics.OutcomeOK)
	return updated, nil
}

// Reset snapshots the current window into the archive store, then zeroes the
// aggregate and opens a new accounting window. Archive-then-zero runs in one
// transaction, so a crash cannot lose the snapshot or double-archive on retry.
// Empty windows produce no archive but still advance period_reset_at.
func (s *Service) Reset(ctx context.Context, mechanicID snowflake.ID, reason string) (*performancedomain.PerformanceArchive, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = performancedomain.ArchiveReasonManualReset
	}

	var archive *performancedomain.PerformanceArchive

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		aggregate, err := s.lockCumulative(ctx, tx, mechanicID)
		if err != nil {
			return err
		}
		if aggregate == nil {
			legacy, err := s.countLegacyForMechanic(ctx, tx, mechanicID)
			if err != nil {
				return err
			}
			if legacy > 0 {
				return performancedomain.ErrNotCumulative
			}
			return performancedomain.ErrAggregateNotFound
		}

		now := s.clock.Now().UTC()

		if aggregate.ServicesCount > 0 || aggregate.TotalLaborCost.IsPositive() {
			windowStart := performancedomain.WindowStartSentinel()
			if aggregate.PeriodResetAt != nil {
				windowStart = aggregate.PeriodResetAt.UTC()
			}
			archive = &performancedomain.PerformanceArchive{
				ID:             s.genID.Generate(),
				MechanicID:     mechanicID,
				WindowStart:    windowStart,
				WindowEnd:      now,
				ServicesCount:  aggregate.ServicesCount,
				TotalLaborCost: aggregate.TotalLaborCost,
				IsPaid:         aggregate.IsPaid,
				PaidAt:         aggregate.PaidAt,
				ArchivedAt:     now,
				ArchiveReason:  reason,
				CreatedAt:      now,
			}
			if err := tx.WithContext(ctx).Create(archive).Error; err != nil {
				return err
			}
		}

		note := "reset at " + now.Format(time.RFC3339)
		if err := tx.WithContext(ctx).Exec(
			`UPDATE mechanic_performances
			 SET services_count = 0,
			     total_labor_cost = 0,
			     period_reset_at = ?,
			     last_calculated_at = ?,
			     is_paid = ?,
			     paid_at = NULL,
			     note = ?,
			     updated_at = ?
			 WHERE id = ?`,
			now,
			now,
			false,
			note,
			now,
			aggregate.ID,
		).Error; err != nil {
			return err
		}

		s.log.Info("aggregate reset",
			zap.String("mechanic_id", mechanicID.String()),
			zap.String("reason", reason),
			zap.Int64("archived_services_count", aggregate.ServicesCount),
			zap.String("archived_total_labor_cost", aggregate.TotalLaborCost.String()),
			zap.Bool("archive_written", archive != nil),
		)
		return nil
	})
	if err != nil {
		err = classify(err)
		s.log.Warn("aggregate reset failed",
			zap.String("mechanic_id", mechanicID.String()),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return nil, err
	}

	obsmetrics.Performance().IncReset(archive != nil)
	return archive, nil
}

func (s *Service) GetAggregate(ctx context.Context, mechanicID snowflake.ID) (*performancedomain.MechanicPerformance, error) {
	aggregate, err := s.getCumulative(ctx, mechanicID)
	if err != nil {
		return nil, classify(err)
	}
	if aggregate == nil {
		return nil, performancedomain.ErrAggregateNotFound
	}
	return aggregate, nil
}

func (s *Service) ListArchives(ctx context.Context, req performancedomain.ListArchivesRequest) ([]performancedomain.PerformanceArchive, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	query := s.db.WithContext(ctx).
		Where("mechanic_id = ?", req.MechanicID).
		Order("window_end DESC").
		Limit(limit)
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		query = query.Where("archive_reason = ?", reason)
	}

	var archives []performancedomain.PerformanceArchive
	if err := query.Find(&archives).Error; err != nil {
		return nil, classify(err)
	}
	return archives, nil
}

func (s *Service) CountLegacyRemaining(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM mechanic_performances WHERE is_cumulative = ?`,
		false,
	).Scan(&count).Error
	if err != nil {
		return 0, classify(err)
	}
	return count, nil
}

func (s *Service) getCumulative(ctx context.Context, mechanicID snowflake.ID) (*performancedomain.MechanicPerformance, error) {
	var aggregate performancedomain.MechanicPerformance
	err := s.db.WithContext(ctx).
		Where("mechanic_id = ? AND is_cumulative = ?", mechanicID, true).
		First(&aggregate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &aggregate, nil
}

func (s *Service) lockCumulative(ctx context.Context, tx *gorm.DB, mechanicID snowflake.ID) (*performancedomain.MechanicPerformance, error) {
	query := `SELECT * FROM mechanic_performances
	          WHERE mechanic_id = ? AND is_cumulative = ?
	          LIMIT 1`
	// SQLite serializes writers; row locks only exist on server databases.
	if !strings.EqualFold(tx.Dialector.Name(), "sqlite") {
		query += ` FOR UPDATE`
	}

	lockStart := time.Now()
	var aggregate performancedomain.MechanicPerformance
	err := tx.WithContext(ctx).Raw(query, mechanicID, true).Scan(&aggregate).Error
	obsmetrics.Performance().ObserveDBLockWait(time.Since(lockStart))
	if err != nil {
		return nil, err
	}
	if aggregate.ID == 0 {
		return nil, nil
	}
	return &aggregate, nil
}

func (s *Service) countLegacyForMechanic(ctx context.Context, tx *gorm.DB, mechanicID snowflake.ID) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM mechanic_performances WHERE mechanic_id = ? AND is_cumulative = ?`,
		mechanicID,
		false,
	).Scan(&count).Error
	return count, err
}

// classify maps driver-level contention onto the domain's retryable error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, performancedomain.ErrAggregateNotFound) ||
		errors.Is(err, performancedomain.ErrNotCumulative) ||
		errors.Is(err, performancedomain.ErrTransient) ||
		errors.Is(err, mechanicdomain.ErrMechanicNotFound) {
		return err
	}
	if pkgdb.IsTransientErr(err) {
		return fmt.Errorf("%w: %v", performancedomain.ErrTransient, err)
	}
	return err
}

func recalcOutcome(err error) string {
	switch {
	case err == nil:
		return obsmetrics.OutcomeOK
	case errors.Is(err, performancedomain.ErrAggregateNotFound):
		return obsmetrics.OutcomeNotFound
	case errors.Is(err, performancedomain.ErrNotCumulative):
		return obsmetrics.OutcomeInvalid
	case errors.Is(err, performancedomain.ErrTransient):
		return obsmetrics.OutcomeTransient
	default:
		return obsmetrics.OutcomeError
	}
}
