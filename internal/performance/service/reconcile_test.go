package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bengkel/internal/config"
	performancedomain "github.com/smallbiznis/bengkel/internal/performance/domain"
	workorderdomain "github.com/smallbiznis/bengkel/internal/workorder/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// flakyLedger fails SumCompletedLabor a configured number of times per
// mechanic (-1 means always) before delegating to the real ledger.
type flakyLedger struct {
	inner workorderdomain.Ledger
	err   error

	mu      sync.Mutex
	failFor map[snowflake.ID]int
}

func (l *flakyLedger) SumCompletedLabor(ctx context.Context, tx *gorm.DB, mechanicID snowflake.ID, since *time.Time) (workorderdomain.LaborSummary, error) {
	l.mu.Lock()
	remaining := l.failFor[mechanicID]
	if remaining != 0 {
		if remaining > 0 {
			l.failFor[mechanicID] = remaining - 1
		}
		l.mu.Unlock()
		return workorderdomain.LaborSummary{}, l.err
	}
	l.mu.Unlock()
	return l.inner.SumCompletedLabor(ctx, tx, mechanicID, since)
}

func testReconcileConfig() config.ReconcileConfig {
	return config.ReconcileConfig{
		RunInterval:      time.Minute,
		JobTimeout:       30 * time.Second,
		Parallelism:      4,
		TransientRetries: 2,
		RetryBackoff:     time.Millisecond,
	}
}

func (e *testEnv) serviceWithLedger(ledger workorderdomain.Ledger) performancedomain.Service {
	return NewService(Params{
		DB:     e.db,
		Log:    zap.NewNop(),
		GenID:  e.node,
		Clock:  e.clk,
		Ledger: ledger,
		Roster: e.mechanicSvc,
		Config: FixedReconcileConfig(testReconcileConfig()),
	})
}

func TestReconcileAllProvisionsMissingAggregates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.serviceWithLedger(env.ledger)

	budi := env.createMechanic(t, "Budi")
	sari := env.createMechanic(t, "Sari")
	env.createMechanic(t, "Dewi")

	env.insertCompletedOrder(t, budi, 100_000, env.clk.Now().Add(-time.Hour))
	env.insertCompletedOrder(t, sari, 200_000, env.clk.Now().Add(-time.Hour))

	report, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Updated, "first pass provisions, so every mechanic counts as updated")
	assert.Equal(t, 0, report.Unchanged)
	assert.Equal(t, 0, report.ErrorCount)
	assert.Len(t, report.Results, 3)

	aggregate, err := svc.GetAggregate(ctx, budi)
	require.NoError(t, err)
	assert.Equal(t, int64(1), aggregate.ServicesCount)
	assert.True(t, aggregate.TotalLaborCost.Equal(decimal.NewFromInt(100_000)))
}

func TestReconcileAllSteadyStateUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.serviceWithLedger(env.ledger)

	budi := env.createMechanic(t, "Budi")
	env.createMechanic(t, "Sari")
	env.insertCompletedOrder(t, budi, 100_000, env.clk.Now().Add(-time.Hour))

	_, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)

	report, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 2, report.Unchanged)
	assert.Equal(t, 0, report.ErrorCount)
}

func TestReconcileAllDetectsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := env.serviceWithLedger(env.ledger)

	budi := env.createMechanic(t, "Budi")
	env.insertCompletedOrder(t, budi, 100_000, env.clk.Now().Add(-2*time.Hour))

	_, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)

	// Drift: a stale aggregate left behind by a missed recomputation.
	require.NoError(t, env.db.Exec(
		`UPDATE mechanic_performances SET services_count = 0, total_labor_cost = 0 WHERE mechanic_id = ?`,
		budi,
	).Error)

	report, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)

	aggregate, err := svc.GetAggregate(ctx, budi)
	require.NoError(t, err)
	assert.Equal(t, int64(1), aggregate.ServicesCount)
	assert.True(t, aggregate.TotalLaborCost.Equal(decimal.NewFromInt(100_000)))
}

func TestReconcileAllIsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	budi := env.createMechanic(t, "Budi")
	sari := env.createMechanic(t, "Sari")
	dewi := env.createMechanic(t, "Dewi")

	env.insertCompletedOrder(t, budi, 100_000, env.clk.Now().Add(-time.Hour))
	env.insertCompletedOrder(t, sari, 200_000, env.clk.Now().Add(-time.Hour))
	env.insertCompletedOrder(t, dewi, 300_000, env.clk.Now().Add(-time.Hour))

	ledger := &flakyLedger{
		inner:   env.ledger,
		err:     errors.New("ledger read failed"),
		failFor: map[snowflake.ID]int{sari: -1},
	}
	svc := env.serviceWithLedger(ledger)

	report, err := svc.ReconcileAll(ctx)
	require.NoError(t, err, "batch runs report errors per mechanic, not as a hard failure")
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.ErrorCount)
	assert.True(t, report.PartialFailure())

	var failed *performancedomain.ReconcileResult
	for i := range report.Results {
		if report.Results[i].Outcome == performancedomain.ReconcileOutcomeError {
			failed = &report.Results[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, sari, failed.MechanicID)
	assert.Contains(t, failed.Err, "ledger read failed")

	// The failed mechanic's aggregate keeps its provisioned zero state.
	stale, err := svc.GetAggregate(ctx, sari)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stale.ServicesCount)

	healthy, err := svc.GetAggregate(ctx, dewi)
	require.NoError(t, err)
	assert.Equal(t, int64(1), healthy.ServicesCount)
	assert.True(t, healthy.TotalLaborCost.Equal(decimal.NewFromInt(300_000)))
}

func TestReconcileAllRetriesTransientErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	budi := env.createMechanic(t, "Budi")
	env.insertCompletedOrder(t, budi, 100_000, env.clk.Now().Add(-time.Hour))

	ledger := &flakyLedger{
		inner:   env.ledger,
		err:     fmt.Errorf("%w: row lock timeout", performancedomain.ErrTransient),
		failFor: map[snowflake.ID]int{budi: 2},
	}
	svc := env.serviceWithLedger(ledger)

	report, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ErrorCount, "transient failures within the retry budget must heal")
	assert.Equal(t, 1, report.Updated)

	aggregate, err := svc.GetAggregate(ctx, budi)
	require.NoError(t, err)
	assert.Equal(t, int64(1), aggregate.ServicesCount)
}

func TestReconcileAllExhaustedRetriesReportError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	budi := env.createMechanic(t, "Budi")
	ledger := &flakyLedger{
		inner:   env.ledger,
		err:     fmt.Errorf("%w: row lock timeout", performancedomain.ErrTransient),
		failFor: map[snowflake.ID]int{budi: -1},
	}
	svc := env.serviceWithLedger(ledger)

	report, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ErrorCount)
	require.Len(t, report.Results, 1)
	assert.Contains(t, report.Results[0].Err, performancedomain.ErrTransient.Error())
}

func TestReconcileAllCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	svc := env.serviceWithLedger(env.ledger)
	env.createMechanic(t, "Budi")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ReconcileAll(ctx)
	assert.Error(t, err, "a context cancelled before the roster scan aborts the run")
}
