package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateWorkOrderRequest struct {
	MechanicID  string          `json:"mechanic_id"`
	Vehicle     string          `json:"vehicle"`
	Description string          `json:"description"`
	LaborCost   decimal.Decimal `json:"labor_cost"`
	Metadata    map[string]any  `json:"metadata"`
}

// LaborSummary is the recompute input for one mechanic: count and cost sum
// of completed work orders. A ledger with no matching rows yields the zero
// value, never nulls.
type LaborSummary struct {
	ServicesCount  int64
	TotalLaborCost decimal.Decimal
}

type Service interface {
	Create(context.Context, CreateWorkOrderRequest) (*WorkOrder, error)
	Get(ctx context.Context, id snowflake.ID) (*WorkOrder, error)
	Complete(ctx context.Context, id snowflake.ID) (*WorkOrder, error)
	ListByMechanic(ctx context.Context, mechanicID snowflake.ID, limit int) ([]WorkOrder, error)
}

// Ledger is the read-only query capability the performance core consumes.
// The tx handle lets recomputation read the ledger under the same
// transaction that locks the aggregate row.
type Ledger interface {
	SumCompletedLabor(ctx context.Context, tx *gorm.DB, mechanicID snowflake.ID, since *time.Time) (LaborSummary, error)
}

var (
	ErrWorkOrderNotFound = errors.New("work_order_not_found")
	ErrInvalidMechanic   = errors.New("invalid_mechanic")
	ErrInvalidLaborCost  = errors.New("invalid_labor_cost")
	ErrAlreadyCompleted  = errors.New("work_order_already_completed")
	ErrNotCompletable    = errors.New("work_order_not_completable")
)
