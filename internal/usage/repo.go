package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshfold/freshfold-backend/pkg/db/models"
	"github.com/freshfold/freshfold-backend/pkg/enums"
)

// Repository defines the reads the accountant performs. The guard passes a
// tx-bound clone so usage is recomputed inside the submission transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSubscriptionWithPlan(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	CountOrdersInPeriod(ctx context.Context, subscriptionID uuid.UUID, from, to time.Time) (int64, error)
	SumEntitlementUnitsInPeriod(ctx context.Context, subscriptionID uuid.UUID, from, to time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a usage repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindSubscriptionWithPlan(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("id = ?", id).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) CountOrdersInPeriod(ctx context.Context, subscriptionID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("subscription_id = ?", subscriptionID).
		Where("status <> ?", enums.OrderStatusCancelled).
		Where("pickup_date >= ? AND pickup_date < ?", from, to).
		Count(&count).Error
	return count, err
}

func (r *repository) SumEntitlementUnitsInPeriod(ctx context.Context, subscriptionID uuid.UUID, from, to time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.subscription_id = ?", subscriptionID).
		Where("orders.status <> ?", enums.OrderStatusCancelled).
		Where("orders.pickup_date >= ? AND orders.pickup_date < ?", from, to).
		Where("order_items.classification = ?", enums.ServiceClassEntitlement).
		Select("COALESCE(SUM(order_items.qty), 0)").
		Scan(&total).Error
	return total, err
}
