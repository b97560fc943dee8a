package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshfold/freshfold-backend/internal/catalog"
	"github.com/freshfold/freshfold-backend/internal/pricing"
	"github.com/freshfold/freshfold-backend/internal/usage"
	"github.com/freshfold/freshfold-backend/pkg/db"
	"github.com/freshfold/freshfold-backend/pkg/db/models"
	"github.com/freshfold/freshfold-backend/pkg/enums"
	pkgerrors "github.com/freshfold/freshfold-backend/pkg/errors"
	"github.com/freshfold/freshfold-backend/pkg/logger"
	"github.com/freshfold/freshfold-backend/pkg/metrics"
	"github.com/freshfold/freshfold-backend/pkg/money"
	"github.com/freshfold/freshfold-backend/pkg/outbox"
	"github.com/freshfold/freshfold-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// QuoteInput is a candidate order to price. Quoting never writes.
type QuoteInput struct {
	UserID         uuid.UUID
	SubscriptionID *uuid.UUID
	Items          []pricing.Item
	TipCents       money.Cents
	PickupDate     time.Time
}

// SubmitInput commits a previously quoted order. QuotedCoveredBags carries
// the coverage the customer saw at quote time; the guard aborts if it no
// longer fits.
type SubmitInput struct {
	QuoteInput
	QuotedCoveredBags int
	IdempotencyKey    string
}

// Quote bundles the cost breakdown with the usage snapshot it was based on.
type Quote struct {
	Calculation *pricing.CostCalculation
	Usage       *usage.Snapshot
}

// Service is the order intake surface.
type Service interface {
	Quote(ctx context.Context, input QuoteInput) (*Quote, error)
	Submit(ctx context.Context, input SubmitInput) (*models.Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// ServiceParams groups dependencies for the orders service.
type ServiceParams struct {
	TransactionRunner txRunner
	Repo              Repository
	Catalog           catalog.Service
	Usage             usage.Accountant
	Outbox            outboxPublisher
	Logger            *logger.Logger
	Metrics           *metrics.OrderMetrics
	TaxBasisPoints    int64
}

type service struct {
	tx      txRunner
	repo    Repository
	catalog catalog.Service
	usage   usage.Accountant
	outbox  outboxPublisher
	logger  *logger.Logger
	metrics *metrics.OrderMetrics
	taxBps  int64
}

// NewService builds the orders service.
func NewService(params ServiceParams) (Service, error) {
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if params.Usage == nil {
		return nil, fmt.Errorf("usage accountant required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:      params.TransactionRunner,
		repo:    params.Repo,
		catalog: params.Catalog,
		usage:   params.Usage,
		outbox:  params.Outbox,
		logger:  params.Logger,
		metrics: params.Metrics,
		taxBps:  params.TaxBasisPoints,
	}, nil
}

// Quote prices the candidate items against the live usage snapshot. No side
// effects; the caller may discard the result at any time.
func (s *service) Quote(ctx context.Context, input QuoteInput) (*Quote, error) {
	if err := validateQuoteInput(input); err != nil {
		s.metrics.IncQuote("rejected")
		return nil, err
	}

	snapshot, hasBenefits, err := s.loadUsage(ctx, nil, input)
	if err != nil {
		s.metrics.IncQuote("rejected")
		return nil, err
	}

	calc, err := s.price(ctx, input, snapshot, hasBenefits)
	if err != nil {
		s.metrics.IncQuote("rejected")
		return nil, err
	}

	s.metrics.IncQuote("ok")
	return &Quote{Calculation: calc, Usage: snapshot}, nil
}

// Submit re-prices and persists the order inside one transaction. The
// subscription row is locked first so two concurrent submissions cannot both
// observe the same remaining entitlement.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.Order, error) {
	if err := validateQuoteInput(input.QuoteInput); err != nil {
		s.metrics.IncSubmission("rejected")
		return nil, err
	}
	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		s.metrics.IncSubmission("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	if input.QuotedCoveredBags < 0 {
		s.metrics.IncSubmission("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quoted coverage must not be negative")
	}

	// Replay: the same key returns the already-committed order unchanged.
	existing, err := s.repo.FindByIdempotencyKey(ctx, input.UserID, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order by idempotency key")
	}
	if existing != nil {
		s.metrics.IncSubmission("replayed")
		return existing, nil
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if input.SubscriptionID != nil {
			if err := repo.LockSubscription(ctx, *input.SubscriptionID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking subscription")
			}
		}

		snapshot, hasBenefits, err := s.loadUsage(ctx, tx, input.QuoteInput)
		if err != nil {
			return err
		}

		calc, err := s.price(ctx, input.QuoteInput, snapshot, hasBenefits)
		if err != nil {
			return err
		}

		// The guard: coverage promised at quote time must still fit.
		if calc.CoveredBags < input.QuotedCoveredBags {
			return pkgerrors.New(pkgerrors.CodeEntitlementExhausted,
				fmt.Sprintf("only %d of %d quoted covered bags remain; re-quote and resubmit",
					calc.CoveredBags, input.QuotedCoveredBags))
		}

		order = buildOrder(input, calc)
		if err := repo.Create(ctx, order); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID.String(), Role: string(enums.RoleCustomer)},
			Data: orderEventPayload{
				OrderID:        order.ID,
				UserID:         order.UserID,
				SubscriptionID: order.SubscriptionID,
				Status:         string(order.Status),
				PickupDate:     order.PickupDate,
				TotalCents:     order.TotalCents,
				CoveredBags:    order.CoveredBags,
			},
		})
	})
	if err != nil {
		// A concurrent submission with the same key won the insert race.
		if db.IsUniqueViolation(err, "") {
			if replay, ferr := s.repo.FindByIdempotencyKey(ctx, input.UserID, key); ferr == nil && replay != nil {
				s.metrics.IncSubmission("replayed")
				return replay, nil
			}
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeEntitlementExhausted) {
			s.metrics.IncSubmission("entitlement_exhausted")
		} else {
			s.metrics.IncSubmission("failed")
		}
		return nil, err
	}

	s.metrics.IncSubmission("accepted")
	s.metrics.AddCoveredBags(order.CoveredBags)

	ctx = s.logger.WithOrderID(ctx, order.ID.String())
	s.logger.Info(ctx, "order submitted")
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	rows, next, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return rows, next, nil
}

// Cancel flips a scheduled order to cancelled; the derived usage drops with
// it, freeing the entitlement for the rest of the period.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusCancelled {
		return order, nil
	}
	if order.Status != enums.OrderStatusScheduled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s cannot be cancelled", order.Status))
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled, now); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID.String(), Role: string(enums.RoleCustomer)},
			Data: orderEventPayload{
				OrderID:        order.ID,
				UserID:         order.UserID,
				SubscriptionID: order.SubscriptionID,
				Status:         string(enums.OrderStatusCancelled),
				PickupDate:     order.PickupDate,
				TotalCents:     order.TotalCents,
				CoveredBags:    order.CoveredBags,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	order.Status = enums.OrderStatusCancelled
	order.CancelledAt = &now
	return order, nil
}

// MarkDelivered is the driver-facing transition out of processing.
func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status == enums.OrderStatusCancelled || order.Status == enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s cannot be delivered", order.Status))
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusDelivered, now); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: orderEventPayload{
				OrderID:        order.ID,
				UserID:         order.UserID,
				SubscriptionID: order.SubscriptionID,
				Status:         string(enums.OrderStatusDelivered),
				PickupDate:     order.PickupDate,
				TotalCents:     order.TotalCents,
				CoveredBags:    order.CoveredBags,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	order.Status = enums.OrderStatusDelivered
	order.DeliveryDate = &now
	return order, nil
}

// loadUsage resolves the entitlement snapshot for the quote. A subscription
// that is paused, cancelled, or whose period does not cover the pickup date
// yields no benefits rather than an error; pay-as-you-go pricing applies.
func (s *service) loadUsage(ctx context.Context, tx *gorm.DB, input QuoteInput) (*usage.Snapshot, bool, error) {
	if input.SubscriptionID == nil {
		return nil, false, nil
	}

	var snapshot *usage.Snapshot
	var err error
	if tx != nil {
		snapshot, err = s.usage.ComputeUsageTx(ctx, tx, *input.SubscriptionID, input.PickupDate)
	} else {
		snapshot, err = s.usage.ComputeUsage(ctx, *input.SubscriptionID, input.PickupDate)
	}
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNoActivePeriod) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return snapshot, true, nil
}

func (s *service) price(ctx context.Context, input QuoteInput, snapshot *usage.Snapshot, hasBenefits bool) (*pricing.CostCalculation, error) {
	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		ids = append(ids, item.ServiceID)
	}
	services, err := s.catalog.ResolveServices(ctx, ids)
	if err != nil {
		return nil, err
	}

	remaining := 0
	if snapshot != nil {
		remaining = snapshot.BagsRemaining
	}
	return pricing.PriceOrder(pricing.Input{
		Services:              services,
		Items:                 input.Items,
		HasActiveSubscription: hasBenefits,
		BagsRemaining:         remaining,
		TipCents:              input.TipCents,
		TaxRateBasisPoints:    s.taxBps,
	})
}

func buildOrder(input SubmitInput, calc *pricing.CostCalculation) *models.Order {
	key := strings.TrimSpace(input.IdempotencyKey)
	order := &models.Order{
		ID:             uuid.New(),
		UserID:         input.UserID,
		SubscriptionID: input.SubscriptionID,
		Status:         enums.OrderStatusScheduled,
		PickupDate:     input.PickupDate,
		SubtotalCents:  calc.FinalSubtotalCents.Int64(),
		DiscountCents:  calc.SubscriptionDiscountCents.Int64(),
		TaxCents:       calc.TaxCents.Int64(),
		TipCents:       calc.TipCents.Int64(),
		TotalCents:     calc.TotalCents.Int64(),
		CoveredBags:    calc.CoveredBags,
		IdempotencyKey: &key,
	}
	for _, line := range calc.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			ServiceID:      line.ServiceID,
			ServiceName:    line.ServiceName,
			Classification: enums.ServiceClassification(line.Classification),
			Qty:            line.Qty,
			UnitPriceCents: line.UnitPriceCents.Int64(),
			BasePriceCents: line.BasePriceCents.Int64(),
			TotalCents:     line.TotalCents.Int64(),
			CoveredQty:     line.CoveredQty,
		})
	}
	return order
}

func validateQuoteInput(input QuoteInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidOrderItems, "order has no items")
	}
	if input.PickupDate.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "pickup date is required")
	}
	return nil
}

type orderEventPayload struct {
	OrderID        uuid.UUID  `json:"order_id"`
	UserID         uuid.UUID  `json:"user_id"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	Status         string     `json:"status"`
	PickupDate     time.Time  `json:"pickup_date"`
	TotalCents     int64      `json:"total_cents"`
	CoveredBags    int        `json:"covered_bags"`
}
