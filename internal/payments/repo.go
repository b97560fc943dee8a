package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/freshfold/freshfold-backend/pkg/db/models"
)

// Repository persists the card-on-file metadata for customers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.PaymentProfile, error)
	Upsert(ctx context.Context, profile *models.PaymentProfile) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment profile repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.PaymentProfile, error) {
	var profile models.PaymentProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *repository) Upsert(ctx context.Context, profile *models.PaymentProfile) error {
	if profile == nil {
		return errors.New("payment profile required")
	}
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"square_customer_id", "default_card_id", "updated_at"}),
		}).
		Create(profile).Error
}
