// Package domain contains persistence models for the mechanic cumulative
// performance ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MechanicPerformance is the running aggregate for one mechanic. At most one
// cumulative row exists per mechanic; rows with IsCumulative=false are legacy
// period-bounded records awaiting migration.
//
// Invariant: for a cumulative row, ServicesCount and TotalLaborCost equal the
// count and cost sum of completed work orders with completed_at >=
// PeriodResetAt (unbounded when nil). Any recompute restores this exactly.
type MechanicPerformance struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	MechanicID       snowflake.ID    `gorm:"not null;index" json:"mechanic_id"`
	IsCumulative     bool            `gorm:"not null;default:false;index" json:"is_cumulative"`
	PeriodStart      *time.Time      `json:"period_start,omitempty"` // legacy rows only
	PeriodEnd        *time.Time      `json:"period_end,omitempty"`   // legacy rows only
	ServicesCount    int64           `gorm:"not null;default:0" json:"services_count"`
	TotalLaborCost   decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"total_labor_cost"`
	LastCalculatedAt *time.Time      `json:"last_calculated_at,omitempty"`
	PeriodResetAt    *time.Time      `json:"period_reset_at,omitempty"`
	IsPaid           bool            `gorm:"not null;default:false" json:"is_paid"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	Note             string          `gorm:"type:text" json:"note,omitempty"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (MechanicPerformance) TableName() string { return "mechanic_performances" }

// PerformanceArchive is an immutable snapshot of an aggregate taken at reset
// or legacy migration. Created exactly once per reset event, never mutated.
type PerformanceArchive struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	MechanicID     snowflake.ID      `gorm:"not null;index" json:"mechanic_id"`
	WindowStart    time.Time         `gorm:"not null" json:"window_start"`
	WindowEnd      time.Time         `gorm:"not null" json:"window_end"`
	ServicesCount  int64             `gorm:"not null" json:"services_count"`
	TotalLaborCost decimal.Decimal   `gorm:"type:numeric(18,2);not null" json:"total_labor_cost"`
	IsPaid         bool              `gorm:"not null" json:"is_paid"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	ArchivedAt     time.Time         `gorm:"not null" json:"archived_at"`
	ArchiveReason  string            `gorm:"type:text;not null;index" json:"archive_reason"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (PerformanceArchive) TableName() string { return "mechanic_performance_archives" }

const (
	ArchiveReasonManualReset         = "manual_reset"
	ArchiveReasonWeeklyDataMigration = "weekly_data_migration"
)

// WindowStartSentinel marks "never reset" windows in archives.
func WindowStartSentinel() time.Time { return time.Unix(0, 0).UTC() }
