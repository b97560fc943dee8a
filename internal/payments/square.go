package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"

	"github.com/freshfold/freshfold-backend/pkg/db/models"
	pkgerrors "github.com/freshfold/freshfold-backend/pkg/errors"
	"github.com/freshfold/freshfold-backend/pkg/logger"
	"github.com/freshfold/freshfold-backend/pkg/money"
	"github.com/freshfold/freshfold-backend/pkg/square"
)

type paymentCreator interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	CreateRefund(ctx context.Context, params square.RefundCreateParams) (*sq.PaymentRefund, error)
	LocationID() string
	NewIdempotencyKey(prefix string) string
}

// SquareParams groups dependencies for the Square-backed collaborator.
type SquareParams struct {
	Repo   Repository
	Client paymentCreator
	Logger *logger.Logger
}

type squareCollaborator struct {
	repo   Repository
	client paymentCreator
	logger *logger.Logger
}

// NewSquareCollaborator builds the production payment collaborator backed by
// the card on file in the user's payment profile.
func NewSquareCollaborator(params SquareParams) (Collaborator, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Client == nil {
		return nil, fmt.Errorf("square client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &squareCollaborator{
		repo:   params.Repo,
		client: params.Client,
		logger: params.Logger,
	}, nil
}

func (c *squareCollaborator) HasDefaultPaymentMethod(ctx context.Context, userID uuid.UUID) (bool, error) {
	profile, err := c.repo.FindByUserID(ctx, userID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment profile")
	}
	return profile != nil && profile.HasDefaultCard(), nil
}

func (c *squareCollaborator) Charge(ctx context.Context, userID uuid.UUID, amount money.Cents, memo string) (*Receipt, error) {
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	}
	profile, err := c.chargeableProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	payment, err := c.client.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    amount.Int64(),
		LocationID:     c.client.LocationID(),
		CustomerID:     *profile.SquareCustomerID,
		SourceID:       *profile.DefaultCardID,
		IdempotencyKey: c.client.NewIdempotencyKey("proration.charge"),
		Note:           memo,
		ReferenceID:    userID.String(),
	})
	if err != nil {
		return nil, err
	}

	ctx = c.logger.WithFields(ctx, map[string]any{
		"user_id":      userID.String(),
		"amount_cents": amount.Int64(),
	})
	c.logger.Info(ctx, "payment charged")
	return &Receipt{ProviderID: paymentID(payment), Amount: amount, Memo: memo}, nil
}

func (c *squareCollaborator) Credit(ctx context.Context, userID uuid.UUID, amount money.Cents, memo string) (*Receipt, error) {
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	profile, err := c.chargeableProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	refund, err := c.client.CreateRefund(ctx, square.RefundCreateParams{
		AmountCents:    amount.Int64(),
		LocationID:     c.client.LocationID(),
		CustomerID:     *profile.SquareCustomerID,
		DestinationID:  *profile.DefaultCardID,
		IdempotencyKey: c.client.NewIdempotencyKey("proration.credit"),
		Reason:         memo,
	})
	if err != nil {
		return nil, err
	}

	ctx = c.logger.WithFields(ctx, map[string]any{
		"user_id":      userID.String(),
		"amount_cents": amount.Int64(),
	})
	c.logger.Info(ctx, "payment credited")
	return &Receipt{ProviderID: refundID(refund), Amount: amount, Memo: memo}, nil
}

// chargeableProfile loads the user's profile and fails with
// PAYMENT_METHOD_REQUIRED when no card is on file.
func (c *squareCollaborator) chargeableProfile(ctx context.Context, userID uuid.UUID) (*models.PaymentProfile, error) {
	profile, err := c.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment profile")
	}
	if profile == nil || !profile.HasDefaultCard() {
		return nil, pkgerrors.New(pkgerrors.CodePaymentMethodRequired, "no payment method on file")
	}
	return profile, nil
}

func paymentID(payment *sq.Payment) string {
	if payment == nil || payment.GetID() == nil {
		return ""
	}
	return strings.TrimSpace(*payment.GetID())
}

func refundID(refund *sq.PaymentRefund) string {
	if refund == nil {
		return ""
	}
	return strings.TrimSpace(refund.GetID())
}
