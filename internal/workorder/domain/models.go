// Package domain contains persistence models for workshop work orders.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// WorkOrderStatus tracks a work order through the shop floor.
type WorkOrderStatus string

const (
	WorkOrderStatusPending    WorkOrderStatus = "pending"
	WorkOrderStatusInProgress WorkOrderStatus = "in_progress"
	WorkOrderStatusCompleted  WorkOrderStatus = "completed"
	WorkOrderStatusCancelled  WorkOrderStatus = "cancelled"
)

// WorkOrder attributes one unit of labor to exactly one mechanic.
// Completed rows are the source of truth the performance ledger recomputes from.
type WorkOrder struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	MechanicID  snowflake.ID      `gorm:"not null;index" json:"mechanic_id"`
	Vehicle     string            `gorm:"type:text" json:"vehicle,omitempty"`
	Description string            `gorm:"type:text" json:"description,omitempty"`
	Status      WorkOrderStatus   `gorm:"type:text;not null;index" json:"status"`
	LaborCost   decimal.Decimal   `gorm:"type:numeric(18,2);not null" json:"labor_cost"`
	CompletedAt *time.Time        `gorm:"index" json:"completed_at,omitempty"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (WorkOrder) TableName() string { return "work_orders" }
