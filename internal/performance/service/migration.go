package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/smallbiznis/bengkel/internal/observability/metrics"
	performancedomain "github.com/smallbiznis/bengkel/internal/performance/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MigrateLegacyRecords retires every period-bounded legacy row: each becomes
// one immutable archive (reason weekly_data_migration) and is deleted, one
// transaction per record so one bad row never blocks the rest. Afterwards
// every active mechanic without a cumulative aggregate gets one, backfilled
// from full ledger history rather than starting at zero-since-now.
//
// Safe to re-run: a second invocation finds no legacy rows and no missing
// aggregates.
func (s *Service) MigrateLegacyRecords(ctx context.Context) (*performancedomain.MigrationReport, error) {
	obsmetrics.Performance().IncJobRun(obsmetrics.JobLegacyMigrate)
	start := time.Now()

	report := &performancedomain.MigrationReport{}

	var legacyIDs []snowflake.ID
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id FROM mechanic_performances WHERE is_cumulative = ? ORDER BY id`,
		false,
	).Scan(&legacyIDs).Error; err != nil {
		return nil, classify(err)
	}

	for _, recordID := range legacyIDs {
		if ctx.Err() != nil {
			break
		}
		mechanicID, migrated, err := s.migrateLegacyRecord(context.WithoutCancel(ctx), recordID)
		switch {
		case err != nil:
			obsmetrics.Performance().IncBatchMechanic(obsmetrics.JobLegacyMigrate, obsmetrics.OutcomeError)
			report.Errors = append(report.Errors, performancedomain.MigrationError{
				RecordID:   recordID,
				MechanicID: mechanicID,
				Err:        classify(err).Error(),
			})
			s.log.Warn("legacy record migration failed",
				zap.String("record_id", recordID.String()),
				zap.String("mechanic_id", mechanicID.String()),
				zap.Error(err),
			)
		case migrated:
			obsmetrics.Performance().IncBatchMechanic(obsmetrics.JobLegacyMigrate, obsmetrics.OutcomeOK)
			report.Migrated++
		}
	}

	mechanicIDs, err := s.roster.ListActiveMechanicIDs(ctx)
	if err != nil {
		report.ErrorCount = len(report.Errors)
		return report, classify(err)
	}

	for _, mechanicID := range mechanicIDs {
		if ctx.Err() != nil {
			break
		}
		opCtx := context.WithoutCancel(ctx)

		existing, err := s.getCumulative(opCtx, mechanicID)
		if err != nil {
			report.Errors = append(report.Errors, performancedomain.MigrationError{
				MechanicID: mechanicID,
				Err:        classify(err).Error(),
			})
			continue
		}
		if existing != nil {
			continue
		}

		if _, err := s.ProvisionAggregate(opCtx, mechanicID); err != nil {
			report.Errors = append(report.Errors, performancedomain.MigrationError{
				MechanicID: mechanicID,
				Err:        err.Error(),
			})
			continue
		}
		// Backfill from all historical completed work, unlike Reset which
		// intentionally zeroes going forward.
		if _, err := s.Recalculate(opCtx, mechanicID); err != nil {
			report.Errors = append(report.Errors, performancedomain.MigrationError{
				MechanicID: mechanicID,
				Err:        err.Error(),
			})
			continue
		}
		report.Created++
	}

	report.ErrorCount = len(report.Errors)

	obsmetrics.Performance().ObserveJobDuration(obsmetrics.JobLegacyMigrate, time.Since(start))
	s.log.Info("legacy migration finished",
		zap.Int("migrated", report.Migrated),
		zap.Int("created", report.Created),
		zap.Int("errors", report.ErrorCount),
		zap.Duration("elapsed", time.Since(start)),
	)

	return report, nil
}

func (s *Service) migrateLegacyRecord(ctx context.Context, recordID snowflake.ID) (snowflake.ID, bool, error) {
	var (
		mechanicID snowflake.ID
		migrated   bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.lockLegacyRecord(ctx, tx, recordID)
		if err != nil {
			return err
		}
		if record == nil {
			// Already migrated by an earlier run.
			return nil
		}
		mechanicID = record.MechanicID

		now := s.clock.Now().UTC()
		windowStart := performancedomain.WindowStartSentinel()
		if record.PeriodStart != nil {
			windowStart = record.PeriodStart.UTC()
		}
		windowEnd := now
		if record.PeriodEnd != nil {
			windowEnd = record.PeriodEnd.UTC()
		}

		archive := &performancedomain.PerformanceArchive{
			ID:             s.genID.Generate(),
			MechanicID:     record.MechanicID,
			WindowStart:    windowStart,
			WindowEnd:      windowEnd,
			ServicesCount:  record.ServicesCount,
			TotalLaborCost: record.TotalLaborCost,
			IsPaid:         record.IsPaid,
			PaidAt:         record.PaidAt,
			ArchivedAt:     now,
			ArchiveReason:  performancedomain.ArchiveReasonWeeklyDataMigration,
			Metadata:       datatypes.JSONMap{"legacy_record_id": record.ID.String()},
			CreatedAt:      now,
		}
		if err := tx.WithContext(ctx).Create(archive).Error; err != nil {
			return err
		}

		if err := tx.WithContext(ctx).Exec(
			`DELETE FROM mechanic_performances WHERE id = ? AND is_cumulative = ?`,
			record.ID,
			false,
		).Error; err != nil {
			return err
		}

		migrated = true
		return nil
	})
	return mechanicID, migrated, err
}

func (s *Service) lockLegacyRecord(ctx context.Context, tx *gorm.DB, recordID snowflake.ID) (*performancedomain.MechanicPerformance, error) {
	query := `SELECT * FROM mechanic_performances WHERE id = ? AND is_cumulative = ?`
	if !strings.EqualFold(tx.Dialector.Name(), "sqlite") {
		query += ` FOR UPDATE`
	}
	var record performancedomain.MechanicPerformance
	if err := tx.WithContext(ctx).Raw(query, recordID, false).Scan(&record).Error; err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}
