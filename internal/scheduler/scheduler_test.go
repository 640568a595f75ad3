package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/bengkel/internal/clock"
	performancedomain "github.com/smallbiznis/bengkel/internal/performance/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubPerformanceService implements only what the scheduler touches.
type stubPerformanceService struct {
	performancedomain.Service

	reconcile func(ctx context.Context) (*performancedomain.ReconciliationReport, error)
	calls     int32
}

func (s *stubPerformanceService) ReconcileAll(ctx context.Context) (*performancedomain.ReconciliationReport, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.reconcile(ctx)
}

func newTestScheduler(t *testing.T, svc performancedomain.Service) *Scheduler {
	t.Helper()
	s, err := New(Params{
		Log:            zap.NewNop(),
		Clock:          clock.NewFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)),
		PerformanceSvc: svc,
	})
	require.NoError(t, err)
	return s
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOnceInvokesReconciliation(t *testing.T) {
	stub := &stubPerformanceService{
		reconcile: func(context.Context) (*performancedomain.ReconciliationReport, error) {
			return &performancedomain.ReconciliationReport{Updated: 2, Unchanged: 5}, nil
		},
	}
	s := newTestScheduler(t, stub)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.calls))
}

func TestRunOncePartialFailureIsNotFatal(t *testing.T) {
	stub := &stubPerformanceService{
		reconcile: func(context.Context) (*performancedomain.ReconciliationReport, error) {
			return &performancedomain.ReconciliationReport{Updated: 1, ErrorCount: 3}, nil
		},
	}
	s := newTestScheduler(t, stub)

	assert.NoError(t, s.RunOnce(context.Background()),
		"per-mechanic errors surface in logs and the report, not as loop failures")
}

func TestRunOnceWrapsHardErrors(t *testing.T) {
	cause := errors.New("roster scan failed")
	stub := &stubPerformanceService{
		reconcile: func(context.Context) (*performancedomain.ReconciliationReport, error) {
			return nil, cause
		},
	}
	s := newTestScheduler(t, stub)

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "reconcile_performance")
}

func TestRunOnceTreatsDeadlineAsSoftTimeout(t *testing.T) {
	stub := &stubPerformanceService{
		reconcile: func(ctx context.Context) (*performancedomain.ReconciliationReport, error) {
			return nil, context.DeadlineExceeded
		},
	}
	s := newTestScheduler(t, stub)

	assert.NoError(t, s.RunOnce(context.Background()),
		"a timed-out run ends the job, the next tick retries")
}

func TestRunForeverStopsOnContextCancel(t *testing.T) {
	stub := &stubPerformanceService{
		reconcile: func(context.Context) (*performancedomain.ReconciliationReport, error) {
			return &performancedomain.ReconciliationReport{}, nil
		},
	}
	s := newTestScheduler(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunForever(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&stub.calls), int32(1))
}
