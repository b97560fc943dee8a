package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshfold/freshfold-backend/pkg/db/models"
	"github.com/freshfold/freshfold-backend/pkg/enums"
	pkgerrors "github.com/freshfold/freshfold-backend/pkg/errors"
)

// Snapshot is the derived entitlement position for one billing period.
// It is never persisted; the order history is the source of truth.
type Snapshot struct {
	SubscriptionID   uuid.UUID
	PlanID           uuid.UUID
	PeriodStart      time.Time
	PeriodEnd        time.Time
	PickupsAllowed   int
	PickupsUsed      int
	PickupsRemaining int
	BagsAllowed      int
	BagsUsed         int
	BagsRemaining    int
}

// Accountant computes usage snapshots from order history.
type Accountant interface {
	// ComputeUsage derives the snapshot as of the given instant. The
	// subscription must be active and asOf must fall inside its current
	// period, otherwise NO_ACTIVE_PERIOD is returned.
	ComputeUsage(ctx context.Context, subscriptionID uuid.UUID, asOf time.Time) (*Snapshot, error)
	// ComputeUsageTx is ComputeUsage bound to an open transaction, used by
	// the reservation guard for its re-validation read.
	ComputeUsageTx(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID, asOf time.Time) (*Snapshot, error)
}

type accountant struct {
	repo Repository
}

// NewAccountant builds a usage accountant with the required dependencies.
func NewAccountant(repo Repository) (Accountant, error) {
	if repo == nil {
		return nil, fmt.Errorf("usage repository required")
	}
	return &accountant{repo: repo}, nil
}

func (a *accountant) ComputeUsage(ctx context.Context, subscriptionID uuid.UUID, asOf time.Time) (*Snapshot, error) {
	return a.compute(ctx, a.repo, subscriptionID, asOf)
}

func (a *accountant) ComputeUsageTx(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID, asOf time.Time) (*Snapshot, error) {
	return a.compute(ctx, a.repo.WithTx(tx), subscriptionID, asOf)
}

func (a *accountant) compute(ctx context.Context, repo Repository, subscriptionID uuid.UUID, asOf time.Time) (*Snapshot, error) {
	sub, err := repo.FindSubscriptionWithPlan(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("subscription %s not found", subscriptionID))
	}
	if sub.Status != enums.SubscriptionStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeNoActivePeriod, fmt.Sprintf("subscription %s is %s", subscriptionID, sub.Status))
	}
	if !sub.PeriodContains(asOf) {
		return nil, pkgerrors.New(pkgerrors.CodeNoActivePeriod, "requested instant is outside the current billing period")
	}
	if sub.Plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("plan %s not found", sub.PlanID))
	}

	pickupsUsed, err := repo.CountOrdersInPeriod(ctx, sub.ID, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting period orders")
	}
	bagsUsed, err := repo.SumEntitlementUnitsInPeriod(ctx, sub.ID, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing entitlement units")
	}

	return buildSnapshot(sub, int(pickupsUsed), int(bagsUsed)), nil
}

func buildSnapshot(sub *models.Subscription, pickupsUsed, bagsUsed int) *Snapshot {
	pickupsAllowed := sub.Plan.PickupsPerMonth
	bagsAllowed := sub.Plan.BagsAllowed()
	return &Snapshot{
		SubscriptionID:   sub.ID,
		PlanID:           sub.PlanID,
		PeriodStart:      sub.CurrentPeriodStart,
		PeriodEnd:        sub.CurrentPeriodEnd,
		PickupsAllowed:   pickupsAllowed,
		PickupsUsed:      pickupsUsed,
		PickupsRemaining: clampNonNegative(pickupsAllowed - pickupsUsed),
		BagsAllowed:      bagsAllowed,
		BagsUsed:         bagsUsed,
		BagsRemaining:    clampNonNegative(bagsAllowed - bagsUsed),
	}
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
