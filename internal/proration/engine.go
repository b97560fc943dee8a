package proration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freshfold/freshfold-backend/pkg/db/models"
	"github.com/freshfold/freshfold-backend/pkg/enums"
	pkgerrors "github.com/freshfold/freshfold-backend/pkg/errors"
	"github.com/freshfold/freshfold-backend/pkg/money"
)

// Preview is the derived outcome of a mid-period plan change. It is never
// persisted; committing the change is a separate explicit step.
type Preview struct {
	SubscriptionID        uuid.UUID
	CurrentPlanID         uuid.UUID
	CurrentPlanName       string
	NewPlanID             uuid.UUID
	NewPlanName           string
	DaysRemaining         int64
	PeriodDays            int64
	UnusedCreditCents     money.Cents
	NewPlanChargeCents    money.Cents
	ImmediateChargeCents  money.Cents
	ImmediateCreditCents  money.Cents
	Description           string
	NewBillingDate        time.Time
	RequiresPaymentMethod bool
}

// NetCents returns the signed net amount, positive when the customer owes.
func (p Preview) NetCents() money.Cents {
	return p.ImmediateChargeCents.Sub(p.ImmediateCreditCents)
}

type subscriptionLoader interface {
	FindSubscriptionWithPlan(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
}

type planLoader interface {
	FindPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

type paymentChecker interface {
	HasDefaultPaymentMethod(ctx context.Context, userID uuid.UUID) (bool, error)
}

// EngineParams groups dependencies for the proration engine.
type EngineParams struct {
	Subscriptions subscriptionLoader
	Plans         planLoader
	Payments      paymentChecker
}

// Engine computes plan-change proration previews. Read-only: it never
// mutates subscription state or triggers a charge.
type Engine struct {
	subscriptions subscriptionLoader
	plans         planLoader
	payments      paymentChecker
}

// NewEngine builds a proration engine with the required dependencies.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription loader required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan loader required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment checker required")
	}
	return &Engine{
		subscriptions: params.Subscriptions,
		plans:         params.Plans,
		payments:      params.Payments,
	}, nil
}

// Preview computes the immediate charge or credit for moving the subscription
// to newPlanID as of asOf.
func (e *Engine) Preview(ctx context.Context, subscriptionID, newPlanID uuid.UUID, asOf time.Time) (*Preview, error) {
	sub, err := e.subscriptions.FindSubscriptionWithPlan(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}

	newPlan, err := e.plans.FindPlan(ctx, newPlanID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading plan")
	}

	preview, err := Compute(sub, newPlan, asOf)
	if err != nil {
		return nil, err
	}

	if preview.ImmediateChargeCents > 0 {
		hasMethod, err := e.payments.HasDefaultPaymentMethod(ctx, sub.UserID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking payment method")
		}
		preview.RequiresPaymentMethod = !hasMethod
	}
	return preview, nil
}

// Compute derives the proration amounts for an already-loaded subscription
// and candidate plan. Pure except for the inputs; RequiresPaymentMethod is
// left false for the caller to fill in.
func Compute(sub *models.Subscription, newPlan *models.Plan, asOf time.Time) (*Preview, error) {
	if sub == nil || sub.Plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription plan not found")
	}
	if sub.Status != enums.SubscriptionStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeNoActivePeriod, "subscription is not active")
	}
	if !sub.PeriodContains(asOf) {
		return nil, pkgerrors.New(pkgerrors.CodeNoActivePeriod, "no billing period covers the requested date")
	}
	if newPlan == nil || !newPlan.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	if newPlan.ID == sub.PlanID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription is already on this plan")
	}

	periodDays := daysBetween(sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	if periodDays < 1 {
		periodDays = 1
	}
	// The asOf day itself counts as remaining: a change on the last day of
	// the period still prorates one day.
	daysRemaining := daysBetween(asOf, sub.CurrentPeriodEnd)
	if daysRemaining < 0 {
		daysRemaining = 0
	}
	if daysRemaining > periodDays {
		daysRemaining = periodDays
	}

	unusedCredit := money.Cents(sub.Plan.PriceCents).MulRatio(daysRemaining, periodDays)
	newCharge := money.Cents(newPlan.PriceCents).MulRatio(daysRemaining, periodDays)

	preview := &Preview{
		SubscriptionID:     sub.ID,
		CurrentPlanID:      sub.PlanID,
		CurrentPlanName:    sub.Plan.Name,
		NewPlanID:          newPlan.ID,
		NewPlanName:        newPlan.Name,
		DaysRemaining:      daysRemaining,
		PeriodDays:         periodDays,
		UnusedCreditCents:  unusedCredit,
		NewPlanChargeCents: newCharge,
		NewBillingDate:     sub.CurrentPeriodEnd,
	}

	net := newCharge.Sub(unusedCredit)
	switch {
	case net > 0:
		preview.ImmediateChargeCents = net
		preview.Description = fmt.Sprintf(
			"Switching from %s to %s charges $%s for the %d remaining days of this period.",
			sub.Plan.Name, newPlan.Name, net.String(), daysRemaining)
	case net < 0:
		preview.ImmediateCreditCents = -net
		preview.Description = fmt.Sprintf(
			"Switching from %s to %s credits $%s for the %d remaining days of this period.",
			sub.Plan.Name, newPlan.Name, (-net).String(), daysRemaining)
	default:
		preview.Description = fmt.Sprintf(
			"Switching from %s to %s costs nothing today.", sub.Plan.Name, newPlan.Name)
	}
	return preview, nil
}

// daysBetween counts whole days from one calendar date to another, ignoring
// the time-of-day component.
func daysBetween(from, to time.Time) int64 {
	return int64(dateOnly(to).Sub(dateOnly(from)).Hours() / 24)
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
