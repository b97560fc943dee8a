package controllers

import (
	"net/http"

	"github.com/freshfold/freshfold-backend/api/responses"
	"github.com/freshfold/freshfold-backend/internal/catalog"
	pkgerrors "github.com/freshfold/freshfold-backend/pkg/errors"
	"github.com/freshfold/freshfold-backend/pkg/logger"
)

// ListPlans feeds the public marketing pages; only active plans are returned.
func ListPlans(catalogSvc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans, err := catalogSvc.ListPlans(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans"))
			return
		}
		out := make([]planResponse, 0, len(plans))
		for _, plan := range plans {
			out = append(out, toPlanResponse(plan))
		}
		responses.WriteSuccess(w, out)
	}
}

func ListServices(catalogSvc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := catalogSvc.ListServices(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list services"))
			return
		}
		out := make([]serviceResponse, 0, len(services))
		for _, svc := range services {
			out = append(out, toServiceResponse(svc))
		}
		responses.WriteSuccess(w, out)
	}
}
