// Package scheduler drives periodic bulk reconciliation of the performance
// ledger. The core itself stays trigger-driven; this loop is the external
// trigger for self-healing drift.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/bengkel/internal/clock"
	"github.com/smallbiznis/bengkel/internal/config"
	performancedomain "github.com/smallbiznis/bengkel/internal/performance/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler requires db-backed services")

type Params struct {
	fx.In

	Log            *zap.Logger
	Clock          clock.Clock
	PerformanceSvc performancedomain.Service
	ConfigHolder   *config.ReconcileConfigHolder
}

type Scheduler struct {
	log            *zap.Logger
	clock          clock.Clock
	performanceSvc performancedomain.Service
	configHolder   *config.ReconcileConfigHolder
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.PerformanceSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:            p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		clock:          p.Clock,
		performanceSvc: p.PerformanceSvc,
		configHolder:   p.ConfigHolder,
	}, nil
}

func (s *Scheduler) config() config.ReconcileConfig {
	if s.configHolder == nil {
		return config.DefaultReconcileConfig()
	}
	return s.configHolder.Get()
}

// RunForever loops RunOnce at the configured interval. The interval is
// re-read every tick so hot-reloaded config applies without a restart.
func (s *Scheduler) RunForever(ctx context.Context) {
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("scheduled run failed", zap.Error(err))
		}

		interval := s.config().RunInterval
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-time.After(interval):
		}
	}
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, "reconcile_performance", s.config().JobTimeout, func(ctx context.Context) error {
		report, err := s.performanceSvc.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		if report.PartialFailure() {
			s.log.Warn("reconciliation completed with errors",
				zap.Int("updated", report.Updated),
				zap.Int("unchanged", report.Unchanged),
				zap.Int("errors", report.ErrorCount),
			)
		}
		return nil
	})
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(
		zap.String("job", name),
		zap.String("run_id", uuid.NewString()),
	)
	log.Info("job started")

	err := fn(ctx)
	elapsed := s.clock.Now().Sub(start)
	if err == nil {
		log.Info("job finished", zap.Duration("elapsed", elapsed))
		return nil
	}

	// treat deadline as soft-timeout
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}
