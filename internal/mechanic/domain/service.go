package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateMechanicRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Specialty string `json:"specialty"`
}

type Service interface {
	Create(context.Context, CreateMechanicRequest) (*Mechanic, error)
	Get(ctx context.Context, id snowflake.ID) (*Mechanic, error)
	List(ctx context.Context, activeOnly bool) ([]Mechanic, error)
	Deactivate(ctx context.Context, id snowflake.ID) error

	// ListActiveMechanicIDs feeds bulk reconciliation and legacy migration.
	ListActiveMechanicIDs(ctx context.Context) ([]snowflake.ID, error)
}

var (
	ErrMechanicNotFound = errors.New("mechanic_not_found")
	ErrInvalidName      = errors.New("invalid_name")
)
