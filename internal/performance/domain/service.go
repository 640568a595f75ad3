package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type ListArchivesRequest struct {
	MechanicID snowflake.ID
	Limit      int
	Reason     string // optional filter
}

// MigrationError records one legacy record that could not be migrated.
type MigrationError struct {
	RecordID   snowflake.ID `json:"record_id"`
	MechanicID snowflake.ID `json:"mechanic_id"`
	Err        string       `json:"error"`
}

// MigrationReport summarizes one MigrateLegacyRecords run.
type MigrationReport struct {
	Migrated   int              `json:"migrated_count"`
	Created    int              `json:"created_count"`
	ErrorCount int              `json:"error_count"`
	Errors     []MigrationError `json:"errors,omitempty"`
}

func (r MigrationReport) PartialFailure() bool { return r.ErrorCount > 0 }

type ReconcileOutcome string

const (
	ReconcileOutcomeUpdated   ReconcileOutcome = "updated"
	ReconcileOutcomeUnchanged ReconcileOutcome = "unchanged"
	ReconcileOutcomeError     ReconcileOutcome = "error"
)

// ReconcileResult is the per-mechanic outcome of a bulk reconciliation.
type ReconcileResult struct {
	MechanicID snowflake.ID     `json:"mechanic_id"`
	Outcome    ReconcileOutcome `json:"outcome"`
	Err        string           `json:"error,omitempty"`
}

// ReconciliationReport summarizes one ReconcileAll run. Batch operations
// always complete and report per-item outcomes instead of aborting on the
// first error.
type ReconciliationReport struct {
	Updated    int               `json:"updated_count"`
	Unchanged  int               `json:"unchanged_count"`
	ErrorCount int               `json:"error_count"`
	Results    []ReconcileResult `json:"results,omitempty"`
}

func (r ReconciliationReport) PartialFailure() bool { return r.ErrorCount > 0 }

type Service interface {
	// ProvisionAggregate returns the mechanic's cumulative aggregate,
	// creating a zeroed one when absent. Idempotent.
	ProvisionAggregate(ctx context.Context, mechanicID snowflake.ID) (*MechanicPerformance, error)

	// Recalculate recomputes the aggregate from the work-order ledger under
	// one transaction with the aggregate row locked. Idempotent against a
	// fixed ledger.
	Recalculate(ctx context.Context, mechanicID snowflake.ID) (*MechanicPerformance, error)

	// Reset archives the current window (unless empty) and opens a fresh one.
	// Returns the archive written, or nil when nothing was worth archiving.
	Reset(ctx context.Context, mechanicID snowflake.ID, reason string) (*PerformanceArchive, error)

	MigrateLegacyRecords(ctx context.Context) (*MigrationReport, error)
	ReconcileAll(ctx context.Context) (*ReconciliationReport, error)

	GetAggregate(ctx context.Context, mechanicID snowflake.ID) (*MechanicPerformance, error)
	ListArchives(ctx context.Context, req ListArchivesRequest) ([]PerformanceArchive, error)
	CountLegacyRemaining(ctx context.Context) (int64, error)
}

var (
	// ErrAggregateNotFound: no cumulative aggregate exists for the mechanic.
	ErrAggregateNotFound = errors.New("aggregate_not_found")
	// ErrNotCumulative: the operation targeted a legacy period-bounded row.
	ErrNotCumulative = errors.New("aggregate_not_cumulative")
	// ErrTransient: lock contention or timeout; safe to retry with backoff.
	ErrTransient = errors.New("transient_conflict")
)
