package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	mechanicdomain "github.com/smallbiznis/bengkel/internal/mechanic/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) mechanicdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("mechanic.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req mechanicdomain.CreateMechanicRequest) (*mechanicdomain.Mechanic, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, mechanicdomain.ErrInvalidName
	}

	mechanic := &mechanicdomain.Mechanic{
		ID:        s.genID.Generate(),
		Name:      name,
		Phone:     strings.TrimSpace(req.Phone),
		Specialty: strings.TrimSpace(req.Specialty),
		Active:    true,
	}

	if err := s.db.WithContext(ctx).Create(mechanic).Error; err != nil {
		return nil, err
	}
	return mechanic, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*mechanicdomain.Mechanic, error) {
	var mechanic mechanicdomain.Mechanic
	err := s.db.WithContext(ctx).First(&mechanic, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mechanicdomain.ErrMechanicNotFound
		}
		return nil, err
	}
	return &mechanic, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]mechanicdomain.Mechanic, error) {
	query := s.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var mechanics []mechanicdomain.Mechanic
	if err := query.Find(&mechanics).Error; err != nil {
		return nil, err
	}
	return mechanics, nil
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) error {
	result := s.db.WithContext(ctx).Exec(
		`UPDATE mechanics SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		false,
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return mechanicdomain.ErrMechanicNotFound
	}
	return nil
}

func (s *Service) ListActiveMechanicIDs(ctx context.Context) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := s.db.WithContext(ctx).Raw(
		`SELECT id FROM mechanics WHERE active = ? ORDER BY id`,
		true,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
