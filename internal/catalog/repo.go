package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshfold/freshfold-backend/pkg/db/models"
)

// Repository defines read access to the plan and service catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	FindPlanByName(ctx context.Context, name string) (*models.Plan, error)
	ListActivePlans(ctx context.Context) ([]models.Plan, error)
	FindService(ctx context.Context, id uuid.UUID) (*models.Service, error)
	FindServicesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Service, error)
	ListActiveServices(ctx context.Context) ([]models.Service, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) ListActivePlans(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("price_cents ASC").
		Find(&plans).Error
	return plans, err
}

func (r *repository) FindService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var svc models.Service
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&svc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &svc, nil
}

func (r *repository) FindServicesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var services []models.Service
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&services).Error
	return services, err
}

func (r *repository) ListActiveServices(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&services).Error
	return services, err
}
