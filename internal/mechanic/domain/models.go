// Package domain contains persistence models for the mechanic roster.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Mechanic is a workshop employee that work orders attribute labor to.
type Mechanic struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Phone     string       `gorm:"type:text" json:"phone,omitempty"`
	Specialty string       `gorm:"type:text" json:"specialty,omitempty"`
	Active    bool         `gorm:"not null;default:true;index" json:"active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Mechanic) TableName() string { return "mechanics" }
