package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bengkel/internal/clock"
	workorderdomain "github.com/smallbiznis/bengkel/internal/workorder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) workorderdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("workorder.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// NewLedger exposes the read-only labor summary capability.
func NewLedger(p Params) workorderdomain.Ledger {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("workorder.ledger"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req workorderdomain.CreateWorkOrderRequest) (*workorderdomain.WorkOrder, error) {
	mechanicID, err := snowflake.ParseString(strings.TrimSpace(req.MechanicID))
	if err != nil || mechanicID == 0 {
		return nil, workorderdomain.ErrInvalidMechanic
	}
	if req.LaborCost.IsNegative() {
		return nil, workorderdomain.ErrInvalidLaborCost
	}

	order := &workorderdomain.WorkOrder{
		ID:          s.genID.Generate(),
		MechanicID:  mechanicID,
		Vehicle:     strings.TrimSpace(req.Vehicle),
		Description: strings.TrimSpace(req.Description),
		Status:      workorderdomain.WorkOrderStatusPending,
		LaborCost:   req.LaborCost,
	}
	if req.Metadata != nil {
		order.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*workorderdomain.WorkOrder, error) {
	var order workorderdomain.WorkOrder
	err := s.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workorderdomain.ErrWorkOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// Complete stamps completed_at and makes the order visible to recomputation.
func (s *Service) Complete(ctx context.Context, id snowflake.ID) (*workorderdomain.WorkOrder, error) {
	var order *workorderdomain.WorkOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return workorderdomain.ErrWorkOrderNotFound
		}
		switch current.Status {
		case workorderdomain.WorkOrderStatusCompleted:
			return workorderdomain.ErrAlreadyCompleted
		case workorderdomain.WorkOrderStatusCancelled:
			return workorderdomain.ErrNotCompletable
		}

		now := s.clock.Now().UTC()
		if err := tx.WithContext(ctx).Exec(
			`UPDATE work_orders
			 SET status = ?, completed_at = ?, updated_at = ?
			 WHERE id = ?`,
			workorderdomain.WorkOrderStatusCompleted,
			now,
			now,
			id,
		).Error; err != nil {
			return err
		}

		current.Status = workorderdomain.WorkOrderStatusCompleted
		current.CompletedAt = &now
		current.UpdatedAt = now
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) ListByMechanic(ctx context.Context, mechanicID snowflake.ID, limit int) ([]workorderdomain.WorkOrder, error) {
	if limit <= 0 {
		limit = 50
	}
	var orders []workorderdomain.WorkOrder
	err := s.db.WithContext(ctx).
		Where("mechanic_id = ?", mechanicID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// SumCompletedLabor aggregates completed labor for one mechanic, bounded
// below by since when set. Runs on the caller's tx so the read shares the
// aggregate row lock.
func (s *Service) SumCompletedLabor(ctx context.Context, tx *gorm.DB, mechanicID snowflake.ID, since *time.Time) (workorderdomain.LaborSummary, error) {
	if tx == nil {
		tx = s.db
	}

	var row struct {
		ServicesCount  int64
		TotalLaborCost decimal.Decimal
	}

	query := `SELECT COUNT(*) AS services_count,
	                 COALESCE(SUM(labor_cost), 0) AS total_labor_cost
	          FROM work_orders
	          WHERE mechanic_id = ? AND status = ?`
	args := []any{mechanicID, workorderdomain.WorkOrderStatusCompleted}
	if since != nil {
		query += ` AND completed_at >= ?`
		args = append(args, since.UTC())
	}

	if err := tx.WithContext(ctx).Raw(query, args...).Scan(&row).Error; err != nil {
		return workorderdomain.LaborSummary{}, err
	}

	return workorderdomain.LaborSummary{
		ServicesCount:  row.ServicesCount,
		TotalLaborCost: row.TotalLaborCost,
	}, nil
}

func (s *Service) lockForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*workorderdomain.WorkOrder, error) {
	query := `SELECT * FROM work_orders WHERE id = ?`
	if !strings.EqualFold(tx.Dialector.Name(), "sqlite") {
		query += ` FOR UPDATE`
	}
	var order workorderdomain.WorkOrder
	if err := tx.WithContext(ctx).Raw(query, id).Scan(&order).Error; err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}
