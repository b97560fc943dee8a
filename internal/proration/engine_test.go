package proration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshfold/freshfold-backend/pkg/db/models"
	"github.com/freshfold/freshfold-backend/pkg/enums"
	pkgerrors "github.com/freshfold/freshfold-backend/pkg/errors"
	"github.com/freshfold/freshfold-backend/pkg/money"
)

type fakeSubscriptionLoader struct {
	subs map[uuid.UUID]*models.Subscription
}

func (f *fakeSubscriptionLoader) FindSubscriptionWithPlan(_ context.Context, id uuid.UUID) (*models.Subscription, error) {
	return f.subs[id], nil
}

type fakePlanLoader struct {
	plans map[uuid.UUID]*models.Plan
}

func (f *fakePlanLoader) FindPlan(_ context.Context, id uuid.UUID) (*models.Plan, error) {
	return f.plans[id], nil
}

type fakePaymentChecker struct {
	hasMethod bool
	calls     int
}

func (f *fakePaymentChecker) HasDefaultPaymentMethod(_ context.Context, _ uuid.UUID) (bool, error) {
	f.calls++
	return f.hasMethod, nil
}

func makePlan(name string, priceCents int64) *models.Plan {
	return &models.Plan{
		ID:              uuid.New(),
		Name:            name,
		PriceCents:      priceCents,
		PickupsPerMonth: 4,
		BagsPerPickup:   1,
		Active:          true,
	}
}

func newActiveSubscription(plan *models.Plan, start, end time.Time) *models.Subscription {
	return &models.Subscription{
		ID:                 uuid.New(),
		UserID:             uuid.New(),
		PlanID:             plan.ID,
		Status:             enums.SubscriptionStatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		Plan:               plan,
	}
}

func newTestEngine(t *testing.T, sub *models.Subscription, plans []*models.Plan, hasMethod bool) (*Engine, *fakePaymentChecker) {
	t.Helper()
	planMap := map[uuid.UUID]*models.Plan{}
	for _, p := range plans {
		planMap[p.ID] = p
	}
	checker := &fakePaymentChecker{hasMethod: hasMethod}
	subs := map[uuid.UUID]*models.Subscription{}
	if sub != nil {
		subs[sub.ID] = sub
	}
	engine, err := NewEngine(EngineParams{
		Subscriptions: &fakeSubscriptionLoader{subs: subs},
		Plans:         &fakePlanLoader{plans: planMap},
		Payments:      checker,
	})
	require.NoError(t, err)
	return engine, checker
}

var (
	periodStart = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)
)

func TestPreview_UpgradeMidPeriod(t *testing.T) {
	oldPlan := makePlan("family", 9000)
	newPlan := makePlan("unlimited", 13000)
	sub := newActiveSubscription(oldPlan, periodStart, periodEnd)
	engine, _ := newTestEngine(t, sub, []*models.Plan{oldPlan, newPlan}, true)

	asOf := time.Date(2026, time.March, 21, 0, 0, 0, 0, time.UTC)
	preview, err := engine.Preview(context.Background(), sub.ID, newPlan.ID, asOf)
	require.NoError(t, err)

	assert.Equal(t, int64(10), preview.DaysRemaining)
	assert.Equal(t, int64(30), preview.PeriodDays)
	assert.Equal(t, money.Cents(3000), preview.UnusedCreditCents)
	assert.Equal(t, money.Cents(4333), preview.NewPlanChargeCents)
	assert.Equal(t, money.Cents(1333), preview.ImmediateChargeCents)
	assert.Equal(t, money.Cents(0), preview.ImmediateCreditCents)
	assert.Equal(t, periodEnd, preview.NewBillingDate)
	assert.False(t, preview.RequiresPaymentMethod)
	assert.NotEmpty(t, preview.Description)
}

func TestPreview_DowngradeCreditsTheDifference(t *testing.T) {
	oldPlan := makePlan("unlimited", 13000)
	newPlan := makePlan("family", 9000)
	sub := newActiveSubscription(oldPlan, periodStart, periodEnd)
	engine, checker := newTestEngine(t, sub, []*models.Plan{oldPlan, newPlan}, false)

	asOf := time.Date(2026, time.March, 21, 0, 0, 0, 0, time.UTC)
	preview, err := engine.Preview(context.Background(), sub.ID, newPlan.ID, asOf)
	require.NoError(t, err)

	assert.Equal(t, money.Cents(0), preview.ImmediateChargeCents)
	assert.Equal(t, money.Cents(1333), preview.ImmediateCreditCents)
	assert.False(t, preview.RequiresPaymentMethod)
	// No charge, so the payment collaborator is never consulted.
	assert.Zero(t, checker.calls)
}

func TestPreview_ZeroNet(t *testing.T) {
	oldPlan := makePlan("basic_a", 4900)
	newPlan := makePlan("basic_b", 4900)
	sub := newActiveSubscription(oldPlan, periodStart, periodEnd)
	engine, _ := newTestEngine(t, sub, []*models.Plan{oldPlan, newPlan}, false)

	asOf := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	preview, err := engine.Preview(context.Background(), sub.ID, newPlan.ID, asOf)
	require.NoError(t, err)

	assert.Equal(t, money.Cents(0), preview.ImmediateChargeCents)
	assert.Equal(t, money.Cents(0), preview.ImmediateCreditCents)
	assert.False(t, preview.RequiresPaymentMethod)
}

func TestPreview_RequiresPaymentMethod(t *testing.T) {
	oldPlan := makePlan("basic", 4900)
	newPlan := makePlan("unlimited", 13000)
	sub := newActiveSubscription(oldPlan, periodStart, periodEnd)
	engine, checker := newTestEngine(t, sub, []*models.Plan{oldPlan, newPlan}, false)

	asOf := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	preview, err := engine.Preview(context.Background(), sub.ID, newPlan.ID, asOf)
	require.NoError(t, err)
	assert.Positive(t, preview.ImmediateChargeCents.Int64())
	assert.True(t, preview.RequiresPaymentMethod)
	assert.Equal(t, 1, checker.calls)

	checker.hasMethod = true
	preview, err = engine.Preview(context.Background(), sub.ID, newPlan.ID, asOf)
	require.NoError(t, err)
	assert.False(t, preview.RequiresPaymentMethod)
}

func TestPreview_LastDayStillProratesOneDay(t *testing.T) {
	oldPlan := makePlan("family", 9000)
	newPlan := makePlan("unlimited", 13000)
	sub := newActiveSubscription(oldPlan, periodStart, periodEnd)
	engine, _ := newTestEngine(t, sub, []*models.Plan{oldPlan, newPlan}, true)

	asOf := time.Date(2026, time.March, 30, 12, 0, 0, 0, time.UTC)
	preview, err := engine.Preview(context.Background(), sub.ID, newPlan.ID, asOf)
	require.NoError(t, err)
	assert.Equal(t, int64(1), preview.DaysRemaining)
	assert.Equal(t, money.Cents(300), preview.UnusedCreditCents)
	assert.Equal(t, money.Cents(433), preview.NewPlanChargeCents)
}

func TestPreview_IgnoresTimeOfDay(t *testing.T) {
	oldPlan := makePlan("family", 9000)
	newPlan := makePlan("unlimited", 13000)
	sub := newActiveSubscription(oldPlan, periodStart, periodEnd)
	engine, _ := newTestEngine(t, sub, []*models.Plan{oldPlan, newPlan}, true)

	morning := time.Date(2026, time.March, 21, 0, 1, 0, 0, time.UTC)
	night := time.Date(2026, time.March, 21, 23, 59, 0, 0, time.UTC)

	first, err := engine.Preview(context.Background(), sub.ID, newPlan.ID, morning)
	require.NoError(t, err)
	second, err := engine.Preview(context.Background(), sub.ID, newPlan.ID, night)
	require.NoError(t, err)
	assert.Equal(t, first.ImmediateChargeCents, second.ImmediateChargeCents)
	assert.Equal(t, first.DaysRemaining, second.DaysRemaining)
}

func TestPreview_SignExclusivity(t *testing.T) {
	cases := []struct {
		name     string
		oldPrice int64
		newPrice int64
	}{
		{name: "upgrade", oldPrice: 4900, newPrice: 13000},
		{name: "downgrade", oldPrice: 13000, newPrice: 4900},
		{name: "lateral", oldPrice: 8900, newPrice: 8900},
		{name: "one cent apart", oldPrice: 8900, newPrice: 8901},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			oldPlan := makePlan("old_"+tc.name, tc.oldPrice)
			newPlan := makePlan("new_"+tc.name, tc.newPrice)
			sub := newActiveSubscription(oldPlan, periodStart, periodEnd)
			engine, _ := newTestEngine(t, sub, []*models.Plan{oldPlan, newPlan}, true)

			asOf := time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC)
			preview, err := engine.Preview(context.Background(), sub.ID, newPlan.ID, asOf)
			require.NoError(t, err)

			if preview.ImmediateChargeCents > 0 {
				assert.Equal(t, money.Cents(0), preview.ImmediateCreditCents)
			}
			if preview.ImmediateCreditCents > 0 {
				assert.Equal(t, money.Cents(0), preview.ImmediateChargeCents)
			}
			net := preview.NewPlanChargeCents.Sub(preview.UnusedCreditCents)
			assert.Equal(t, net, preview.NetCents())
		})
	}
}

func TestPreview_Rejections(t *testing.T) {
	oldPlan := makePlan("family", 9000)
	otherPlan := makePlan("unlimited", 13000)
	inactivePlan := makePlan("retired", 9900)
	inactivePlan.Active = false

	t.Run("unknown subscription", func(t *testing.T) {
		engine, _ := newTestEngine(t, nil, []*models.Plan{oldPlan, otherPlan}, true)
		_, err := engine.Preview(context.Background(), uuid.New(), otherPlan.ID, periodStart)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	})

	t.Run("paused subscription", func(t *testing.T) {
		sub := newActiveSubscription(oldPlan, periodStart, periodEnd)
		sub.Status = enums.SubscriptionStatusPaused
		engine, _ := newTestEngine(t, sub, []*models.Plan{oldPlan, otherPlan}, true)
		_, err := engine.Preview(context.Background(), sub.ID, otherPlan.ID, periodStart)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNoActivePeriod))
	})

	t.Run("asOf outside period", func(t *testing.T) {
		sub := newActiveSubscription(oldPlan, periodStart, periodEnd)
		engine, _ := newTestEngine(t, sub, []*models.Plan{oldPlan, otherPlan}, true)
		_, err := engine.Preview(context.Background(), sub.ID, otherPlan.ID, periodEnd.Add(time.Hour))
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNoActivePeriod))
	})

	t.Run("same plan", func(t *testing.T) {
		sub := newActiveSubscription(oldPlan, periodStart, periodEnd)
		engine, _ := newTestEngine(t, sub, []*models.Plan{oldPlan, otherPlan}, true)
		_, err := engine.Preview(context.Background(), sub.ID, oldPlan.ID, periodStart)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	})

	t.Run("inactive target plan", func(t *testing.T) {
		sub := newActiveSubscription(oldPlan, periodStart, periodEnd)
		engine, _ := newTestEngine(t, sub, []*models.Plan{oldPlan, inactivePlan}, true)
		_, err := engine.Preview(context.Background(), sub.ID, inactivePlan.ID, periodStart)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	})
}
