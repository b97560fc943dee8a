package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Plan captures a laundry subscription tier and its monthly allowance.
type Plan struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string         `gorm:"column:name;not null;uniqueIndex"`
	PriceCents      int64          `gorm:"column:price_cents;not null"`
	PickupsPerMonth int            `gorm:"column:pickups_per_month;not null"`
	BagsPerPickup   int            `gorm:"column:bags_per_pickup;not null;default:1"`
	Features        pq.StringArray `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	Active          bool           `gorm:"column:active;not null;default:true"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// BagsAllowed is the number of covered bags per billing period.
func (p Plan) BagsAllowed() int {
	perPickup := p.BagsPerPickup
	if perPickup < 1 {
		perPickup = 1
	}
	return p.PickupsPerMonth * perPickup
}
