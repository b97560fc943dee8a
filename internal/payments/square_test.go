package payments

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/freshfold/freshfold-backend/pkg/db/models"
	pkgerrors "github.com/freshfold/freshfold-backend/pkg/errors"
	"github.com/freshfold/freshfold-backend/pkg/logger"
	"github.com/freshfold/freshfold-backend/pkg/money"
	"github.com/freshfold/freshfold-backend/pkg/square"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	profiles := `
CREATE TABLE IF NOT EXISTS payment_profiles (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  square_customer_id TEXT,
  default_card_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(profiles).Error)
	return db
}

type fakeSquareClient struct {
	payments []square.PaymentCreateParams
	refunds  []square.RefundCreateParams
	err      error
}

func (f *fakeSquareClient) CreatePayment(_ context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payments = append(f.payments, params)
	id := "pay_" + uuid.NewString()[:8]
	return &sq.Payment{ID: &id}, nil
}

func (f *fakeSquareClient) CreateRefund(_ context.Context, params square.RefundCreateParams) (*sq.PaymentRefund, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.refunds = append(f.refunds, params)
	return &sq.PaymentRefund{ID: "ref_" + uuid.NewString()[:8]}, nil
}

func (f *fakeSquareClient) LocationID() string { return "LOC123" }

func (f *fakeSquareClient) NewIdempotencyKey(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func newTestCollaborator(t *testing.T, db *gorm.DB) (Collaborator, Repository, *fakeSquareClient) {
	t.Helper()
	repo := NewRepository(db)
	client := &fakeSquareClient{}
	collab, err := NewSquareCollaborator(SquareParams{
		Repo:   repo,
		Client: client,
		Logger: logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard}),
	})
	require.NoError(t, err)
	return collab, repo, client
}

func storeProfile(t *testing.T, repo Repository, userID uuid.UUID, customerID, cardID string) {
	t.Helper()
	profile := &models.PaymentProfile{UserID: userID}
	if customerID != "" {
		profile.SquareCustomerID = &customerID
	}
	if cardID != "" {
		profile.DefaultCardID = &cardID
	}
	require.NoError(t, repo.Upsert(context.Background(), profile))
}

func TestSquareCollaborator_HasDefaultPaymentMethod(t *testing.T) {
	db := setupPaymentsTestDB(t)
	collab, repo, _ := newTestCollaborator(t, db)
	ctx := context.Background()

	withCard := uuid.New()
	storeProfile(t, repo, withCard, "cust_1", "card_1")

	customerOnly := uuid.New()
	storeProfile(t, repo, customerOnly, "cust_2", "")

	ok, err := collab.HasDefaultPaymentMethod(ctx, withCard)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = collab.HasDefaultPaymentMethod(ctx, customerOnly)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = collab.HasDefaultPaymentMethod(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSquareCollaborator_ChargeUsesCardOnFile(t *testing.T) {
	db := setupPaymentsTestDB(t)
	collab, repo, client := newTestCollaborator(t, db)
	ctx := context.Background()

	userID := uuid.New()
	storeProfile(t, repo, userID, "cust_charge", "card_charge")

	receipt, err := collab.Charge(ctx, userID, money.Cents(1333), "plan change charge")
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.NotEmpty(t, receipt.ProviderID)
	assert.Equal(t, money.Cents(1333), receipt.Amount)

	require.Len(t, client.payments, 1)
	sent := client.payments[0]
	assert.Equal(t, int64(1333), sent.AmountCents)
	assert.Equal(t, "cust_charge", sent.CustomerID)
	assert.Equal(t, "card_charge", sent.SourceID)
	assert.Equal(t, "LOC123", sent.LocationID)
	assert.NotEmpty(t, sent.IdempotencyKey)
}

func TestSquareCollaborator_CreditIssuesRefund(t *testing.T) {
	db := setupPaymentsTestDB(t)
	collab, repo, client := newTestCollaborator(t, db)
	ctx := context.Background()

	userID := uuid.New()
	storeProfile(t, repo, userID, "cust_credit", "card_credit")

	receipt, err := collab.Credit(ctx, userID, money.Cents(3000), "unused period credit")
	require.NoError(t, err)
	require.NotNil(t, receipt)

	require.Len(t, client.refunds, 1)
	sent := client.refunds[0]
	assert.Equal(t, int64(3000), sent.AmountCents)
	assert.Equal(t, "card_credit", sent.DestinationID)
	assert.Empty(t, sent.PaymentID)
}

func TestSquareCollaborator_NoCardOnFile(t *testing.T) {
	db := setupPaymentsTestDB(t)
	collab, repo, client := newTestCollaborator(t, db)
	ctx := context.Background()

	noProfile := uuid.New()
	_, err := collab.Charge(ctx, noProfile, money.Cents(100), "charge")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentMethodRequired))

	customerOnly := uuid.New()
	storeProfile(t, repo, customerOnly, "cust_only", "")
	_, err = collab.Credit(ctx, customerOnly, money.Cents(100), "credit")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentMethodRequired))

	assert.Empty(t, client.payments)
	assert.Empty(t, client.refunds)
}

func TestSquareCollaborator_RejectsNonPositiveAmounts(t *testing.T) {
	db := setupPaymentsTestDB(t)
	collab, repo, _ := newTestCollaborator(t, db)
	ctx := context.Background()

	userID := uuid.New()
	storeProfile(t, repo, userID, "cust_amounts", "card_amounts")

	_, err := collab.Charge(ctx, userID, money.Cents(0), "zero")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = collab.Credit(ctx, userID, money.Cents(-50), "negative")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRepository_UpsertReplacesCard(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	storeProfile(t, repo, userID, "cust_up", "card_old")
	storeProfile(t, repo, userID, "cust_up", "card_new")

	profile, err := repo.FindByUserID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	require.NotNil(t, profile.DefaultCardID)
	assert.Equal(t, "card_new", *profile.DefaultCardID)
}

func TestInMemoryCollaborator(t *testing.T) {
	stub := NewInMemoryCollaborator()
	ctx := context.Background()
	userID := uuid.New()

	ok, err := stub.HasDefaultPaymentMethod(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	stub.AddPaymentMethod(userID)
	ok, err = stub.HasDefaultPaymentMethod(ctx, userID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = stub.Charge(ctx, userID, money.Cents(500), "memo")
	require.NoError(t, err)
	_, err = stub.Credit(ctx, userID, money.Cents(200), "memo")
	require.NoError(t, err)
	assert.Len(t, stub.Charges, 1)
	assert.Len(t, stub.Credits, 1)
}
