package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshfold/freshfold-backend/pkg/enums"
)

// Order stores a pickup with its priced snapshot. Money columns are written
// once at submission and never recomputed afterwards.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	SubscriptionID *uuid.UUID        `gorm:"column:subscription_id;type:uuid;index"`
	Status         enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'scheduled'"`
	PickupDate     time.Time         `gorm:"column:pickup_date;not null;index"`
	DeliveryDate   *time.Time        `gorm:"column:delivery_date"`
	SubtotalCents  int64             `gorm:"column:subtotal_cents;not null"`
	DiscountCents  int64             `gorm:"column:discount_cents;not null;default:0"`
	TaxCents       int64             `gorm:"column:tax_cents;not null;default:0"`
	TipCents       int64             `gorm:"column:tip_cents;not null;default:0"`
	TotalCents     int64             `gorm:"column:total_cents;not null"`
	CoveredBags    int               `gorm:"column:covered_bags;not null;default:0"`
	IdempotencyKey *string           `gorm:"column:idempotency_key;uniqueIndex"`
	Items          []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CancelledAt    *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
