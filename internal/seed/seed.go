package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	mechanicdomain "github.com/smallbiznis/bengkel/internal/mechanic/domain"
	workorderdomain "github.com/smallbiznis/bengkel/internal/workorder/domain"
	"gorm.io/gorm"
)

var demoMechanics = []struct {
	Name      string
	Specialty string
}{
	{Name: "Agus Santoso", Specialty: "engine"},
	{Name: "Budi Hartono", Specialty: "electrical"},
	{Name: "Citra Wijaya", Specialty: "transmission"},
}

// EnsureDemoWorkshop seeds a small roster with completed work orders so a
// local instance has something to reconcile.
func EnsureDemoWorkshop(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&mechanicdomain.Mechanic{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		for i, m := range demoMechanics {
			mechanic := &mechanicdomain.Mechanic{
				ID:        node.Generate(),
				Name:      m.Name,
				Specialty: m.Specialty,
				Active:    true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(mechanic).Error; err != nil {
				return err
			}

			completedAt := now.Add(-time.Duration(i+1) * 24 * time.Hour)
			order := &workorderdomain.WorkOrder{
				ID:          node.Generate(),
				MechanicID:  mechanic.ID,
				Vehicle:     "Toyota Avanza",
				Description: "routine service",
				Status:      workorderdomain.WorkOrderStatusCompleted,
				LaborCost:   decimal.NewFromInt(int64(150_000 * (i + 1))),
				CompletedAt: &completedAt,
				CreatedAt:   completedAt,
				UpdatedAt:   completedAt,
			}
			if err := tx.Create(order).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
