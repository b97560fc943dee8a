package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/freshfold/freshfold-backend/api/middleware"
	"github.com/freshfold/freshfold-backend/api/responses"
	"github.com/freshfold/freshfold-backend/api/validators"
	internalorders "github.com/freshfold/freshfold-backend/internal/orders"
	"github.com/freshfold/freshfold-backend/internal/pricing"
	internalsubs "github.com/freshfold/freshfold-backend/internal/subscriptions"
	pkgerrors "github.com/freshfold/freshfold-backend/pkg/errors"
	"github.com/freshfold/freshfold-backend/pkg/logger"
	"github.com/freshfold/freshfold-backend/pkg/money"
	"github.com/freshfold/freshfold-backend/pkg/pagination"
)

type orderItemRequest struct {
	ServiceID uuid.UUID `json:"service_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

type quoteRequest struct {
	Items      []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	TipCents   int64              `json:"tip_cents" validate:"min=0"`
	PickupDate time.Time          `json:"pickup_date"`
}

type submitRequest struct {
	quoteRequest
	QuotedCoveredBags int `json:"quoted_covered_bags" validate:"min=0"`
}

func (req quoteRequest) toQuoteInput(userID uuid.UUID, subscriptionID *uuid.UUID) internalorders.QuoteInput {
	items := make([]pricing.Item, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, pricing.Item{ServiceID: item.ServiceID, Qty: item.Qty})
	}
	pickup := req.PickupDate
	if pickup.IsZero() {
		pickup = time.Now().UTC()
	}
	return internalorders.QuoteInput{
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Items:          items,
		TipCents:       money.Cents(req.TipCents),
		PickupDate:     pickup,
	}
}

// QuoteOrder prices a candidate order without any side effects.
func QuoteOrder(ordersSvc internalorders.Service, subsSvc internalsubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req quoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subID, err := currentSubscriptionID(r, subsSvc, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := ordersSvc.Quote(r.Context(), req.toQuoteInput(userID, subID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toQuoteResponse(quote))
	}
}

// SubmitOrder commits a quoted order. The Idempotency-Key header doubles as
// the database-level submission key so retries replay the stored order.
func SubmitOrder(ordersSvc internalorders.Service, subsSvc internalsubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		if idempotencyKey == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
			return
		}

		var req submitRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subID, err := currentSubscriptionID(r, subsSvc, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := ordersSvc.Submit(r.Context(), internalorders.SubmitInput{
			QuoteInput:        req.toQuoteInput(userID, subID),
			QuotedCoveredBags: req.QuotedCoveredBags,
			IdempotencyKey:    idempotencyKey,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toOrderResponse(order))
	}
}

func ListOrders(ordersSvc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		list, nextCursor, err := ordersSvc.ListOrders(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := orderListResponse{Orders: make([]orderResponse, 0, len(list)), NextCursor: nextCursor}
		for i := range list {
			out.Orders = append(out.Orders, toOrderResponse(&list[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func OrderDetail(ordersSvc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := ordersSvc.GetOrder(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order))
	}
}

func CancelOrder(ordersSvc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := ordersSvc.Cancel(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order))
	}
}

// DeliverOrder marks a pickup as delivered. Driver role only.
func DeliverOrder(ordersSvc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := ordersSvc.MarkDelivered(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order))
	}
}

func currentUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}

// currentSubscriptionID resolves the caller's subscription for pricing.
// Having none is not an error; the quote falls back to base prices.
func currentSubscriptionID(r *http.Request, subsSvc internalsubs.Service, userID uuid.UUID) (*uuid.UUID, error) {
	sub, err := subsSvc.GetForUser(r.Context(), userID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub.ID, nil
}
