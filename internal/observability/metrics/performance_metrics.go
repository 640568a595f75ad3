// Package metrics captures performance-ledger health signals.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK        = "ok"
	OutcomeNotFound  = "not_found"
	OutcomeInvalid   = "invalid_state"
	OutcomeTransient = "transient"
	OutcomeError     = "error"
)

const (
	JobReconcile     = "reconcile_all"
	JobLegacyMigrate = "legacy_migration"
)

// PerformanceMetrics registers the instruments for recalculation, reset and
// batch reconciliation.
type PerformanceMetrics struct {
	recalcRuns     *prometheus.CounterVec
	resets         *prometheus.CounterVec
	batchMechanics *prometheus.CounterVec
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	dbLockWait     prometheus.Histogram
}

var (
	performanceMetricsOnce sync.Once
	performanceMetrics     *PerformanceMetrics
)

// Performance returns the singleton performance metrics registry.
func Performance() *PerformanceMetrics {
	performanceMetricsOnce.Do(func() {
		performanceMetrics = newPerformanceMetrics(prometheus.DefaultRegisterer)
	})
	return performanceMetrics
}

// ResetPerformanceMetricsForTest resets the singleton for tests.
func ResetPerformanceMetricsForTest() {
	performanceMetricsOnce = sync.Once{}
	performanceMetrics = nil
}

func newPerformanceMetrics(registerer prometheus.Registerer) *PerformanceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &PerformanceMetrics{
		recalcRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bengkel",
			Subsystem: "performance",
			Name:      "recalculations_total",
			Help:      "Aggregate recalculations by outcome.",
		}, []string{"outcome"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bengkel",
			Subsystem: "performance",
			Name:      "resets_total",
			Help:      "Aggregate resets by whether an archive was written.",
		}, []string{"archived"}),
		batchMechanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bengkel",
			Subsystem: "performance",
			Name:      "batch_mechanics_total",
			Help:      "Per-mechanic outcomes inside batch jobs.",
		}, []string{"job", "outcome"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bengkel",
			Subsystem: "performance",
			Name:      "job_runs_total",
			Help:      "Batch job runs.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bengkel",
			Subsystem: "performance",
			Name:      "job_duration_seconds",
			Help:      "Batch job duration.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"job"}),
		dbLockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bengkel",
			Subsystem: "performance",
			Name:      "db_lock_wait_seconds",
			Help:      "Time spent acquiring the aggregate row lock.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}

	registerer.MustRegister(
		m.recalcRuns,
		m.resets,
		m.batchMechanics,
		m.jobRuns,
		m.jobDuration,
		m.dbLockWait,
	)
	return m
}

func (m *PerformanceMetrics) IncRecalculation(outcome string) {
	m.recalcRuns.WithLabelValues(outcome).Inc()
}

func (m *PerformanceMetrics) IncReset(archived bool) {
	label := "false"
	if archived {
		label = "true"
	}
	m.resets.WithLabelValues(label).Inc()
}

func (m *PerformanceMetrics) IncBatchMechanic(job, outcome string) {
	m.batchMechanics.WithLabelValues(job, outcome).Inc()
}

func (m *PerformanceMetrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *PerformanceMetrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *PerformanceMetrics) ObserveDBLockWait(d time.Duration) {
	m.dbLockWait.Observe(d.Seconds())
}
