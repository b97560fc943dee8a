package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/freshfold/freshfold-backend/api/controllers"
	"github.com/freshfold/freshfold-backend/api/middleware"
	"github.com/freshfold/freshfold-backend/internal/catalog"
	"github.com/freshfold/freshfold-backend/internal/orders"
	"github.com/freshfold/freshfold-backend/internal/subscriptions"
	"github.com/freshfold/freshfold-backend/pkg/config"
	"github.com/freshfold/freshfold-backend/pkg/db"
	"github.com/freshfold/freshfold-backend/pkg/enums"
	"github.com/freshfold/freshfold-backend/pkg/logger"
	pkgredis "github.com/freshfold/freshfold-backend/pkg/redis"
)

// Params bundles the services the router wires into handlers.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *pkgredis.Client
	Catalog       catalog.Service
	Orders        orders.Service
	Subscriptions subscriptions.Service
}

func NewRouter(params Params) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", controllers.ListPlans(params.Catalog, logg))
		r.Get("/services", controllers.ListServices(params.Catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			var idempotencyStore pkgredis.IdempotencyStore
			if params.Redis != nil {
				idempotencyStore = params.Redis
			}
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/quote", controllers.QuoteOrder(params.Orders, params.Subscriptions, logg))
				r.Post("/", controllers.SubmitOrder(params.Orders, params.Subscriptions, logg))
				r.Get("/", controllers.ListOrders(params.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(params.Orders, logg))
				r.Post("/{orderId}/cancel", controllers.CancelOrder(params.Orders, logg))
			})

			r.Route("/subscriptions/me", func(r chi.Router) {
				r.Get("/", controllers.MySubscription(params.Subscriptions, logg))
				r.Get("/usage", controllers.MyUsage(params.Subscriptions, logg))
				r.Post("/plan-change/preview", controllers.PreviewPlanChange(params.Subscriptions, logg))
				r.Post("/plan-change", controllers.CommitPlanChange(params.Subscriptions, logg))
				r.Post("/pause", controllers.PauseSubscription(params.Subscriptions, logg))
				r.Post("/resume", controllers.ResumeSubscription(params.Subscriptions, logg))
				r.Post("/cancel", controllers.CancelSubscription(params.Subscriptions, logg))
			})

			r.Route("/driver", func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.RoleDriver), logg))
				r.Post("/orders/{orderId}/deliver", controllers.DeliverOrder(params.Orders, logg))
			})
		})
	})

	return r
}
