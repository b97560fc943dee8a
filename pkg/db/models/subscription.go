package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshfold/freshfold-backend/pkg/enums"
)

// Subscription persists a customer's plan enrollment and current billing
// period. Rows are never hard-deleted; cancellation is a status transition.
type Subscription struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	PlanID             uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	Status             enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	CurrentPeriodStart time.Time                `gorm:"column:current_period_start;not null"`
	CurrentPeriodEnd   time.Time                `gorm:"column:current_period_end;not null"`
	PausedAt           *time.Time               `gorm:"column:paused_at"`
	CancelledAt        *time.Time               `gorm:"column:cancelled_at"`
	Plan               *Plan                    `gorm:"foreignKey:PlanID"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// PeriodContains reports whether asOf falls inside the current billing
// period, start inclusive and end exclusive.
func (s Subscription) PeriodContains(asOf time.Time) bool {
	return !asOf.Before(s.CurrentPeriodStart) && asOf.Before(s.CurrentPeriodEnd)
}
