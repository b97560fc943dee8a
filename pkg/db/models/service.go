package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshfold/freshfold-backend/pkg/enums"
)

// Service is a line-item offering from the laundry catalog. Classification
// is an explicit column; pricing never infers it from the name.
type Service struct {
	ID                  uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                string                      `gorm:"column:name;not null;uniqueIndex"`
	DisplayName         string                      `gorm:"column:display_name;not null"`
	BasePriceCents      int64                       `gorm:"column:base_price_cents;not null"`
	ExtraUnitPriceCents int64                       `gorm:"column:extra_unit_price_cents;not null;default:0"`
	Classification      enums.ServiceClassification `gorm:"column:classification;type:service_classification;not null"`
	Active              bool                        `gorm:"column:active;not null;default:true"`
	CreatedAt           time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
