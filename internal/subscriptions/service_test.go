package subscriptions

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/freshfold/freshfold-backend/internal/catalog"
	"github.com/freshfold/freshfold-backend/internal/payments"
	"github.com/freshfold/freshfold-backend/internal/usage"
	"github.com/freshfold/freshfold-backend/pkg/db"
	"github.com/freshfold/freshfold-backend/pkg/db/models"
	"github.com/freshfold/freshfold-backend/pkg/enums"
	pkgerrors "github.com/freshfold/freshfold-backend/pkg/errors"
	"github.com/freshfold/freshfold-backend/pkg/logger"
	"github.com/freshfold/freshfold-backend/pkg/money"
	"github.com/freshfold/freshfold-backend/pkg/outbox"
)

func setupSubscriptionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	stmts := []string{`
CREATE TABLE IF NOT EXISTS plans (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  price_cents INTEGER NOT NULL,
  pickups_per_month INTEGER NOT NULL,
  bags_per_pickup INTEGER NOT NULL DEFAULT 1,
  features TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  plan_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  current_period_start DATETIME NOT NULL,
  current_period_end DATETIME NOT NULL,
  paused_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  subscription_id TEXT,
  status TEXT NOT NULL DEFAULT 'scheduled',
  pickup_date DATETIME NOT NULL,
  delivery_date DATETIME,
  subtotal_cents INTEGER NOT NULL,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  tax_cents INTEGER NOT NULL DEFAULT 0,
  tip_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  covered_bags INTEGER NOT NULL DEFAULT 0,
  idempotency_key TEXT UNIQUE,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  service_id TEXT NOT NULL,
  service_name TEXT NOT NULL,
  classification TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  base_price_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  covered_qty INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`}
	for _, stmt := range stmts {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func newSubscriptionService(t *testing.T, conn *gorm.DB) (Service, *payments.InMemoryCollaborator) {
	t.Helper()

	accountant, err := usage.NewAccountant(usage.NewRepository(conn))
	require.NoError(t, err)
	collaborator := payments.NewInMemoryCollaborator()

	svc, err := NewService(ServiceParams{
		TransactionRunner: db.NewWithConn(conn),
		Repo:              NewRepository(conn),
		Plans:             catalog.NewRepository(conn),
		Usage:             accountant,
		Payments:          collaborator,
		Outbox:            outbox.NewService(outbox.NewRepository(conn), nil),
		Logger:            logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc, collaborator
}

func seedPlan(t *testing.T, conn *gorm.DB, priceCents int64, pickups int) *models.Plan {
	t.Helper()
	plan := &models.Plan{
		ID:              uuid.New(),
		Name:            uuid.NewString(),
		PriceCents:      priceCents,
		PickupsPerMonth: pickups,
		BagsPerPickup:   1,
		Active:          true,
	}
	require.NoError(t, conn.Create(plan).Error)
	return plan
}

func seedSub(t *testing.T, conn *gorm.DB, plan *models.Plan, status enums.SubscriptionStatus) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		ID:                 uuid.New(),
		UserID:             uuid.New(),
		PlanID:             plan.ID,
		Status:             status,
		CurrentPeriodStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, conn.Create(sub).Error)
	sub.Plan = plan
	return sub
}

var changeDate = time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)

func countEvents(t *testing.T, conn *gorm.DB, aggregateID uuid.UUID, eventType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Table("outbox_events").
		Where("aggregate_id = ? AND event_type = ?", aggregateID.String(), eventType).
		Count(&n).Error)
	return n
}

func TestGetForUser(t *testing.T) {
	conn := setupSubscriptionsTestDB(t)
	svc, _ := newSubscriptionService(t, conn)
	ctx := context.Background()

	plan := seedPlan(t, conn, 8900, 4)
	sub := seedSub(t, conn, plan, enums.SubscriptionStatusPaused)

	found, err := svc.GetForUser(ctx, sub.UserID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, found.ID)
	require.NotNil(t, found.Plan)
	assert.Equal(t, plan.ID, found.Plan.ID)

	_, err = svc.GetForUser(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPauseResumeCancel(t *testing.T) {
	conn := setupSubscriptionsTestDB(t)
	svc, _ := newSubscriptionService(t, conn)
	ctx := context.Background()

	plan := seedPlan(t, conn, 8900, 4)
	sub := seedSub(t, conn, plan, enums.SubscriptionStatusActive)

	paused, err := svc.Pause(ctx, sub.UserID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusPaused, paused.Status)
	require.NotNil(t, paused.PausedAt)
	assert.EqualValues(t, 1, countEvents(t, conn, sub.ID, "subscription_paused"))

	// Pausing twice is a state conflict.
	_, err = svc.Pause(ctx, sub.UserID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	resumed, err := svc.Resume(ctx, sub.UserID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, resumed.Status)
	assert.Nil(t, resumed.PausedAt)
	assert.EqualValues(t, 1, countEvents(t, conn, sub.ID, "subscription_resumed"))

	cancelled, err := svc.Cancel(ctx, sub.UserID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.EqualValues(t, 1, countEvents(t, conn, sub.ID, "subscription_cancelled"))

	// A cancelled subscription is no longer returned.
	_, err = svc.GetForUser(ctx, sub.UserID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetUsage(t *testing.T) {
	conn := setupSubscriptionsTestDB(t)
	svc, _ := newSubscriptionService(t, conn)
	ctx := context.Background()

	plan := seedPlan(t, conn, 8900, 4)
	sub := seedSub(t, conn, plan, enums.SubscriptionStatusActive)

	snapshot, err := svc.GetUsage(ctx, sub.UserID, changeDate)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, snapshot.SubscriptionID)
	assert.Equal(t, 4, snapshot.BagsAllowed)
	assert.Equal(t, 4, snapshot.BagsRemaining)
}

func TestPreviewPlanChange(t *testing.T) {
	conn := setupSubscriptionsTestDB(t)
	svc, collaborator := newSubscriptionService(t, conn)
	ctx := context.Background()

	oldPlan := seedPlan(t, conn, 9000, 4)
	newPlan := seedPlan(t, conn, 13000, 6)
	sub := seedSub(t, conn, oldPlan, enums.SubscriptionStatusActive)

	preview, err := svc.PreviewPlanChange(ctx, sub.UserID, newPlan.ID, changeDate)
	require.NoError(t, err)
	assert.Equal(t, money.Cents(3000), preview.UnusedCreditCents)
	assert.Equal(t, money.Cents(4333), preview.NewPlanChargeCents)
	assert.Equal(t, money.Cents(1333), preview.ImmediateChargeCents)
	assert.True(t, preview.RequiresPaymentMethod)

	// Preview never mutates.
	var stored models.Subscription
	require.NoError(t, conn.Where("id = ?", sub.ID).First(&stored).Error)
	assert.Equal(t, oldPlan.ID, stored.PlanID)
	assert.Empty(t, collaborator.Charges)
}

func TestCommitPlanChange_ChargesAndSwapsPlan(t *testing.T) {
	conn := setupSubscriptionsTestDB(t)
	svc, collaborator := newSubscriptionService(t, conn)
	ctx := context.Background()

	oldPlan := seedPlan(t, conn, 9000, 4)
	newPlan := seedPlan(t, conn, 13000, 6)
	sub := seedSub(t, conn, oldPlan, enums.SubscriptionStatusActive)
	collaborator.AddPaymentMethod(sub.UserID)

	preview, err := svc.CommitPlanChange(ctx, sub.UserID, newPlan.ID, changeDate)
	require.NoError(t, err)
	assert.Equal(t, money.Cents(1333), preview.ImmediateChargeCents)

	require.Len(t, collaborator.Charges, 1)
	assert.Equal(t, money.Cents(1333), collaborator.Charges[0].Amount)

	var stored models.Subscription
	require.NoError(t, conn.Where("id = ?", sub.ID).First(&stored).Error)
	assert.Equal(t, newPlan.ID, stored.PlanID)
	// Period anchors are untouched by a plan change.
	assert.True(t, stored.CurrentPeriodStart.Equal(sub.CurrentPeriodStart))
	assert.True(t, stored.CurrentPeriodEnd.Equal(sub.CurrentPeriodEnd))

	assert.EqualValues(t, 1, countEvents(t, conn, sub.ID, "plan_changed"))
	assert.EqualValues(t, 1, countEvents(t, conn, sub.ID, "proration_charged"))
}

func TestCommitPlanChange_DowngradeCredits(t *testing.T) {
	conn := setupSubscriptionsTestDB(t)
	svc, collaborator := newSubscriptionService(t, conn)
	ctx := context.Background()

	oldPlan := seedPlan(t, conn, 13000, 6)
	newPlan := seedPlan(t, conn, 9000, 4)
	sub := seedSub(t, conn, oldPlan, enums.SubscriptionStatusActive)

	preview, err := svc.CommitPlanChange(ctx, sub.UserID, newPlan.ID, changeDate)
	require.NoError(t, err)
	assert.Equal(t, money.Cents(1333), preview.ImmediateCreditCents)

	require.Len(t, collaborator.Credits, 1)
	assert.Equal(t, money.Cents(1333), collaborator.Credits[0].Amount)
	assert.Empty(t, collaborator.Charges)
	assert.EqualValues(t, 1, countEvents(t, conn, sub.ID, "proration_credited"))
}

func TestCommitPlanChange_RequiresPaymentMethod(t *testing.T) {
	conn := setupSubscriptionsTestDB(t)
	svc, collaborator := newSubscriptionService(t, conn)
	ctx := context.Background()

	oldPlan := seedPlan(t, conn, 9000, 4)
	newPlan := seedPlan(t, conn, 13000, 6)
	sub := seedSub(t, conn, oldPlan, enums.SubscriptionStatusActive)

	_, err := svc.CommitPlanChange(ctx, sub.UserID, newPlan.ID, changeDate)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentMethodRequired))

	var stored models.Subscription
	require.NoError(t, conn.Where("id = ?", sub.ID).First(&stored).Error)
	assert.Equal(t, oldPlan.ID, stored.PlanID)
	assert.Empty(t, collaborator.Charges)
	assert.EqualValues(t, 0, countEvents(t, conn, sub.ID, "plan_changed"))
}

func TestCommitPlanChange_ChargeFailureRollsBack(t *testing.T) {
	conn := setupSubscriptionsTestDB(t)
	svc, collaborator := newSubscriptionService(t, conn)
	ctx := context.Background()

	oldPlan := seedPlan(t, conn, 9000, 4)
	newPlan := seedPlan(t, conn, 13000, 6)
	sub := seedSub(t, conn, oldPlan, enums.SubscriptionStatusActive)
	collaborator.AddPaymentMethod(sub.UserID)
	collaborator.FailNext = errors.New("card declined")

	_, err := svc.CommitPlanChange(ctx, sub.UserID, newPlan.ID, changeDate)
	require.Error(t, err)

	var stored models.Subscription
	require.NoError(t, conn.Where("id = ?", sub.ID).First(&stored).Error)
	assert.Equal(t, oldPlan.ID, stored.PlanID)
	assert.EqualValues(t, 0, countEvents(t, conn, sub.ID, "plan_changed"))
}

func TestCommitPlanChange_SamePlanRejected(t *testing.T) {
	conn := setupSubscriptionsTestDB(t)
	svc, _ := newSubscriptionService(t, conn)
	ctx := context.Background()

	plan := seedPlan(t, conn, 9000, 4)
	sub := seedSub(t, conn, plan, enums.SubscriptionStatusActive)

	_, err := svc.CommitPlanChange(ctx, sub.UserID, plan.ID, changeDate)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
