package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshfold/freshfold-backend/internal/payments"
	"github.com/freshfold/freshfold-backend/internal/proration"
	"github.com/freshfold/freshfold-backend/internal/usage"
	"github.com/freshfold/freshfold-backend/pkg/db/models"
	"github.com/freshfold/freshfold-backend/pkg/enums"
	pkgerrors "github.com/freshfold/freshfold-backend/pkg/errors"
	"github.com/freshfold/freshfold-backend/pkg/logger"
	"github.com/freshfold/freshfold-backend/pkg/money"
	"github.com/freshfold/freshfold-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type planLoader interface {
	FindPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

type paymentCollaborator interface {
	HasDefaultPaymentMethod(ctx context.Context, userID uuid.UUID) (bool, error)
	Charge(ctx context.Context, userID uuid.UUID, amount money.Cents, memo string) (*payments.Receipt, error)
	Credit(ctx context.Context, userID uuid.UUID, amount money.Cents, memo string) (*payments.Receipt, error)
}

// Service is the customer-facing subscription surface.
type Service interface {
	GetForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	GetUsage(ctx context.Context, userID uuid.UUID, asOf time.Time) (*usage.Snapshot, error)
	Pause(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	Resume(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	Cancel(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	PreviewPlanChange(ctx context.Context, userID, newPlanID uuid.UUID, asOf time.Time) (*proration.Preview, error)
	CommitPlanChange(ctx context.Context, userID, newPlanID uuid.UUID, asOf time.Time) (*proration.Preview, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	TransactionRunner txRunner
	Repo              Repository
	Plans             planLoader
	Usage             usage.Accountant
	Payments          paymentCollaborator
	Outbox            outboxPublisher
	Logger            *logger.Logger
}

type service struct {
	tx       txRunner
	repo     Repository
	plans    planLoader
	usage    usage.Accountant
	payments paymentCollaborator
	outbox   outboxPublisher
	logger   *logger.Logger
}

// NewService builds the subscription service.
func NewService(params ServiceParams) (Service, error) {
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan loader required")
	}
	if params.Usage == nil {
		return nil, fmt.Errorf("usage accountant required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments collaborator required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:       params.TransactionRunner,
		repo:     params.Repo,
		plans:    params.Plans,
		usage:    params.Usage,
		payments: params.Payments,
		outbox:   params.Outbox,
		logger:   params.Logger,
	}, nil
}

func (s *service) GetForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindCurrentByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription on file")
	}
	return sub, nil
}

func (s *service) GetUsage(ctx context.Context, userID uuid.UUID, asOf time.Time) (*usage.Snapshot, error) {
	sub, err := s.GetForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.usage.ComputeUsage(ctx, sub.ID, asOf)
}

func (s *service) Pause(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return s.transition(ctx, userID, enums.SubscriptionStatusPaused)
}

func (s *service) Resume(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return s.transition(ctx, userID, enums.SubscriptionStatusActive)
}

func (s *service) Cancel(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return s.transition(ctx, userID, enums.SubscriptionStatusCancelled)
}

var allowedTransitions = map[enums.SubscriptionStatus][]enums.SubscriptionStatus{
	enums.SubscriptionStatusPaused:    {enums.SubscriptionStatusActive},
	enums.SubscriptionStatusActive:    {enums.SubscriptionStatusPaused},
	enums.SubscriptionStatusCancelled: {enums.SubscriptionStatusActive, enums.SubscriptionStatusPaused},
}

var transitionEvents = map[enums.SubscriptionStatus]enums.OutboxEventType{
	enums.SubscriptionStatusPaused:    enums.EventSubscriptionPaused,
	enums.SubscriptionStatusActive:    enums.EventSubscriptionResumed,
	enums.SubscriptionStatusCancelled: enums.EventSubscriptionCancelled,
}

func (s *service) transition(ctx context.Context, userID uuid.UUID, target enums.SubscriptionStatus) (*models.Subscription, error) {
	sub, err := s.GetForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, from := range allowedTransitions[target] {
		if sub.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("subscription in status %s cannot move to %s", sub.Status, target))
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateStatus(ctx, sub.ID, target, now); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     transitionEvents[target],
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			Actor:         &outbox.ActorRef{UserID: userID.String(), Role: string(enums.RoleCustomer)},
			Data: subscriptionEventPayload{
				SubscriptionID: sub.ID,
				UserID:         sub.UserID,
				PlanID:         sub.PlanID,
				Status:         string(target),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	sub.Status = target
	switch target {
	case enums.SubscriptionStatusPaused:
		sub.PausedAt = &now
	case enums.SubscriptionStatusActive:
		sub.PausedAt = nil
	case enums.SubscriptionStatusCancelled:
		sub.CancelledAt = &now
	}

	ctx = s.logger.WithSubscriptionID(ctx, sub.ID.String())
	s.logger.Info(ctx, fmt.Sprintf("subscription %s", target))
	return sub, nil
}

// PreviewPlanChange computes the proration without touching anything.
func (s *service) PreviewPlanChange(ctx context.Context, userID, newPlanID uuid.UUID, asOf time.Time) (*proration.Preview, error) {
	sub, err := s.GetForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	newPlan, err := s.plans.FindPlan(ctx, newPlanID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading plan")
	}

	preview, err := proration.Compute(sub, newPlan, asOf)
	if err != nil {
		return nil, err
	}
	if preview.ImmediateChargeCents > 0 {
		hasMethod, err := s.payments.HasDefaultPaymentMethod(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking payment method")
		}
		preview.RequiresPaymentMethod = !hasMethod
	}
	return preview, nil
}

// CommitPlanChange re-runs the preview inside a transaction, settles the net
// amount through the payment collaborator, and swaps the plan. Period dates
// are kept; the next renewal still lands on the original anchor.
func (s *service) CommitPlanChange(ctx context.Context, userID, newPlanID uuid.UUID, asOf time.Time) (*proration.Preview, error) {
	sub, err := s.GetForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var preview *proration.Preview
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Lock(ctx, sub.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking subscription")
		}

		current, err := repo.FindWithPlan(ctx, sub.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
		}
		newPlan, err := s.plans.FindPlan(ctx, newPlanID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading plan")
		}

		preview, err = proration.Compute(current, newPlan, asOf)
		if err != nil {
			return err
		}

		if preview.ImmediateChargeCents > 0 {
			hasMethod, err := s.payments.HasDefaultPaymentMethod(ctx, userID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking payment method")
			}
			if !hasMethod {
				return pkgerrors.New(pkgerrors.CodePaymentMethodRequired,
					"a payment method must be attached before changing plans")
			}
			if _, err := s.payments.Charge(ctx, userID, preview.ImmediateChargeCents, preview.Description); err != nil {
				return err
			}
			if err := s.emitProration(ctx, tx, current, enums.EventProrationCharged, preview); err != nil {
				return err
			}
		} else if preview.ImmediateCreditCents > 0 {
			if _, err := s.payments.Credit(ctx, userID, preview.ImmediateCreditCents, preview.Description); err != nil {
				return err
			}
			if err := s.emitProration(ctx, tx, current, enums.EventProrationCredited, preview); err != nil {
				return err
			}
		}

		if err := repo.UpdatePlan(ctx, current.ID, newPlanID); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPlanChanged,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   current.ID,
			Actor:         &outbox.ActorRef{UserID: userID.String(), Role: string(enums.RoleCustomer)},
			Data: planChangeEventPayload{
				SubscriptionID:       current.ID,
				UserID:               current.UserID,
				OldPlanID:            current.PlanID,
				NewPlanID:            newPlanID,
				ImmediateChargeCents: preview.ImmediateChargeCents.Int64(),
				ImmediateCreditCents: preview.ImmediateCreditCents.Int64(),
				NewBillingDate:       preview.NewBillingDate,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithSubscriptionID(ctx, sub.ID.String())
	s.logger.Info(ctx, "subscription plan changed")
	return preview, nil
}

func (s *service) emitProration(ctx context.Context, tx *gorm.DB, sub *models.Subscription, eventType enums.OutboxEventType, preview *proration.Preview) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Data: prorationEventPayload{
			SubscriptionID: sub.ID,
			UserID:         sub.UserID,
			AmountCents:    preview.NetCents().Int64(),
			DaysRemaining:  preview.DaysRemaining,
		},
	})
}

type subscriptionEventPayload struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	PlanID         uuid.UUID `json:"plan_id"`
	Status         string    `json:"status"`
}

type planChangeEventPayload struct {
	SubscriptionID       uuid.UUID `json:"subscription_id"`
	UserID               uuid.UUID `json:"user_id"`
	OldPlanID            uuid.UUID `json:"old_plan_id"`
	NewPlanID            uuid.UUID `json:"new_plan_id"`
	ImmediateChargeCents int64     `json:"immediate_charge_cents"`
	ImmediateCreditCents int64     `json:"immediate_credit_cents"`
	NewBillingDate       time.Time `json:"new_billing_date"`
}

type prorationEventPayload struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	AmountCents    int64     `json:"amount_cents"`
	DaysRemaining  int64     `json:"days_remaining"`
}
