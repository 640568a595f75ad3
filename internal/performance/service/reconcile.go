package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bengkel/internal/config"
	obsmetrics "github.com/smallbiznis/bengkel/internal/observability/metrics"
	performancedomain "github.com/smallbiznis/bengkel/internal/performance/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ReconcileConfigSource resolves reconcile tunables, either from the
// hot-reload holder or a fixed config in tests.
type ReconcileConfigSource struct {
	holder *config.ReconcileConfigHolder
	fixed  *config.ReconcileConfig
}

func NewReconcileConfigSource(holder *config.ReconcileConfigHolder) *ReconcileConfigSource {
	return &ReconcileConfigSource{holder: holder}
}

func FixedReconcileConfig(cfg config.ReconcileConfig) *ReconcileConfigSource {
	return &ReconcileConfigSource{fixed: &cfg}
}

func (s *ReconcileConfigSource) Get() config.ReconcileConfig {
	if s == nil {
		return config.DefaultReconcileConfig()
	}
	if s.fixed != nil {
		return *s.fixed
	}
	if s.holder != nil {
		return s.holder.Get()
	}
	return config.DefaultReconcileConfig()
}

// ReconcileAll self-heals drift between the work-order ledger and the
// aggregates. Mechanics are processed in parallel, each inside its own
// transaction, so one mechanic's failure never rolls back another's update.
// Cancellation is cooperative: no new mechanic is started once ctx is done,
// but in-flight transactions run to completion.
func (s *Service) ReconcileAll(ctx context.Context) (*performancedomain.ReconciliationReport, error) {
	cfg := s.cfg.Get()

	ids, err := s.roster.ListActiveMechanicIDs(ctx)
	if err != nil {
		return nil, classify(err)
	}

	obsmetrics.Performance().IncJobRun(obsmetrics.JobReconcile)
	start := time.Now()

	var (
		mu     sync.Mutex
		report performancedomain.ReconciliationReport
	)

	var g errgroup.Group
	g.SetLimit(cfg.Parallelism)

	for _, mechanicID := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result := s.reconcileOne(context.WithoutCancel(ctx), mechanicID, cfg)
			obsmetrics.Performance().IncBatchMechanic(obsmetrics.JobReconcile, string(result.Outcome))

			mu.Lock()
			defer mu.Unlock()
			report.Results = append(report.Results, result)
			switch result.Outcome {
			case performancedomain.ReconcileOutcomeUpdated:
				report.Updated++
			case performancedomain.ReconcileOutcomeUnchanged:
				report.Unchanged++
			case performancedomain.ReconcileOutcomeError:
				report.ErrorCount++
			}
			return nil
		})
	}
	_ = g.Wait()

	obsmetrics.Performance().ObserveJobDuration(obsmetrics.JobReconcile, time.Since(start))
	s.log.Info("bulk reconciliation finished",
		zap.Int("mechanics", len(ids)),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("errors", report.ErrorCount),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &report, nil
}

func (s *Service) reconcileOne(ctx context.Context, mechanicID snowflake.ID, cfg config.ReconcileConfig) performancedomain.ReconcileResult {
	result := performancedomain.ReconcileResult{MechanicID: mechanicID}

	prior, err := s.getCumulative(ctx, mechanicID)
	if err != nil {
		result.Outcome = performancedomain.ReconcileOutcomeError
		result.Err = classify(err).Error()
		return result
	}
	if prior == nil {
		if _, err := s.ProvisionAggregate(ctx, mechanicID); err != nil {
			result.Outcome = performancedomain.ReconcileOutcomeError
			result.Err = err.Error()
			return result
		}
	}

	updated, err := s.recalculateWithRetry(ctx, mechanicID, cfg)
	if err != nil {
		result.Outcome = performancedomain.ReconcileOutcomeError
		result.Err = err.Error()
		s.log.Warn("mechanic reconciliation failed",
			zap.String("mechanic_id", mechanicID.String()),
			zap.Error(err),
		)
		return result
	}

	if prior != nil &&
		prior.ServicesCount == updated.ServicesCount &&
		prior.TotalLaborCost.Equal(updated.TotalLaborCost) {
		result.Outcome = performancedomain.ReconcileOutcomeUnchanged
	} else {
		result.Outcome = performancedomain.ReconcileOutcomeUpdated
	}
	return result
}

func (s *Service) recalculateWithRetry(ctx context.Context, mechanicID snowflake.ID, cfg config.ReconcileConfig) (*performancedomain.MechanicPerformance, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.TransientRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(cfg.RetryBackoff * time.Duration(attempt))
		}
		updated, err := s.Recalculate(ctx, mechanicID)
		if err == nil {
			return updated, nil
		}
		lastErr = err
		if !errors.Is(err, performancedomain.ErrTransient) {
			break
		}
	}
	return nil, lastErr
}
