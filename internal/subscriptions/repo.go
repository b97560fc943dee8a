package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/freshfold/freshfold-backend/pkg/db/models"
	"github.com/freshfold/freshfold-backend/pkg/enums"
)

// Repository persists subscription rows. Rows are never deleted; every
// lifecycle change is a status or period update.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindWithPlan(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindCurrentByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	Create(ctx context.Context, sub *models.Subscription) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SubscriptionStatus, at time.Time) error
	UpdatePlan(ctx context.Context, id, planID uuid.UUID) error
	AdvancePeriod(ctx context.Context, id uuid.UUID, start, end time.Time) error
	ListLapsedActive(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error)
	// Lock takes a row lock for the transaction. Postgres only.
	Lock(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a subscriptions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindWithPlan(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Preload("Plan").Where("id = ?", id).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// FindCurrentByUser returns the user's live subscription, paused included.
// At most one exists per user.
func (r *repository) FindCurrentByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ? AND status IN ?", userID, []enums.SubscriptionStatus{
			enums.SubscriptionStatusActive,
			enums.SubscriptionStatusPaused,
		}).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	if sub == nil {
		return errors.New("subscription required")
	}
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SubscriptionStatus, at time.Time) error {
	updates := map[string]interface{}{"status": status}
	switch status {
	case enums.SubscriptionStatusPaused:
		updates["paused_at"] = at
	case enums.SubscriptionStatusActive:
		updates["paused_at"] = nil
	case enums.SubscriptionStatusCancelled:
		updates["cancelled_at"] = at
	}
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdatePlan(ctx context.Context, id, planID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("plan_id", planID).Error
}

func (r *repository) AdvancePeriod(ctx context.Context, id uuid.UUID, start, end time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_period_start": start,
			"current_period_end":   end,
		}).Error
}

func (r *repository) ListLapsedActive(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	query := r.db.WithContext(ctx).
		Where("status = ? AND current_period_end <= ?", enums.SubscriptionStatusActive, asOf).
		Order("current_period_end ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&subs).Error
	return subs, err
}

func (r *repository) Lock(ctx context.Context, id uuid.UUID) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	var sub models.Subscription
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&sub).Error
}
