package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentProfile links a customer to their Square customer record and the
// card on file used for proration charges. One row per user.
type PaymentProfile struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_payment_profiles_user"`
	SquareCustomerID *string   `gorm:"column:square_customer_id"`
	DefaultCardID    *string   `gorm:"column:default_card_id"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasDefaultCard reports whether the profile can be charged without
// collecting a new payment source.
func (p PaymentProfile) HasDefaultCard() bool {
	return p.SquareCustomerID != nil && strings.TrimSpace(*p.SquareCustomerID) != "" &&
		p.DefaultCardID != nil && strings.TrimSpace(*p.DefaultCardID) != ""
}
