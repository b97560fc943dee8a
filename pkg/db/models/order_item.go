package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshfold/freshfold-backend/pkg/enums"
)

// OrderItem snapshots one priced line of an order. Name, classification and
// prices are copied from the catalog at submission time so later catalog
// edits cannot change a stored order.
type OrderItem struct {
	ID             uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID                   `gorm:"column:order_id;type:uuid;not null;index"`
	ServiceID      uuid.UUID                   `gorm:"column:service_id;type:uuid;not null"`
	ServiceName    string                      `gorm:"column:service_name;not null"`
	Classification enums.ServiceClassification `gorm:"column:classification;type:service_classification;not null"`
	Qty            int                         `gorm:"column:qty;not null"`
	UnitPriceCents int64                       `gorm:"column:unit_price_cents;not null"`
	BasePriceCents int64                       `gorm:"column:base_price_cents;not null"`
	TotalCents     int64                       `gorm:"column:total_cents;not null"`
	CoveredQty     int                         `gorm:"column:covered_qty;not null;default:0"`
	CreatedAt      time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
