package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/freshfold/freshfold-backend/api/responses"
	"github.com/freshfold/freshfold-backend/api/validators"
	internalsubs "github.com/freshfold/freshfold-backend/internal/subscriptions"
	"github.com/freshfold/freshfold-backend/pkg/db/models"
	"github.com/freshfold/freshfold-backend/pkg/logger"
)

type planChangeRequest struct {
	NewPlanID uuid.UUID `json:"new_plan_id" validate:"required"`
}

func MySubscription(subsSvc internalsubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := subsSvc.GetForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionResponse(sub))
	}
}

// MyUsage reports the live usage snapshot for the current billing period.
// The optional as_of query parameter exists for support tooling.
func MyUsage(subsSvc internalsubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		asOf, err := validators.ParseQueryTime(r, "as_of", time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := subsSvc.GetUsage(r.Context(), userID, asOf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toUsageResponse(snap))
	}
}

func PreviewPlanChange(subsSvc internalsubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req planChangeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		preview, err := subsSvc.PreviewPlanChange(r.Context(), userID, req.NewPlanID, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProrationResponse(preview))
	}
}

func CommitPlanChange(subsSvc internalsubs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req planChangeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		applied, err := subsSvc.CommitPlanChange(r.Context(), userID, req.NewPlanID, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProrationResponse(applied))
	}
}

func PauseSubscription(subsSvc internalsubs.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionTransition(subsSvc.Pause, logg)
}

func ResumeSubscription(subsSvc internalsubs.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionTransition(subsSvc.Resume, logg)
}

func CancelSubscription(subsSvc internalsubs.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionTransition(subsSvc.Cancel, logg)
}

func subscriptionTransition(
	transition func(ctx context.Context, userID uuid.UUID) (*models.Subscription, error),
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := transition(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionResponse(sub))
	}
}
