package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/freshfold/freshfold-backend/api/routes"
	"github.com/freshfold/freshfold-backend/internal/catalog"
	"github.com/freshfold/freshfold-backend/internal/orders"
	"github.com/freshfold/freshfold-backend/internal/payments"
	"github.com/freshfold/freshfold-backend/internal/subscriptions"
	"github.com/freshfold/freshfold-backend/internal/usage"
	"github.com/freshfold/freshfold-backend/pkg/config"
	"github.com/freshfold/freshfold-backend/pkg/db"
	"github.com/freshfold/freshfold-backend/pkg/logger"
	"github.com/freshfold/freshfold-backend/pkg/metrics"
	"github.com/freshfold/freshfold-backend/pkg/migrate"
	"github.com/freshfold/freshfold-backend/pkg/outbox"
	"github.com/freshfold/freshfold-backend/pkg/redis"
	"github.com/freshfold/freshfold-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	catalogService, err := catalog.NewService(catalog.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	accountant, err := usage.NewAccountant(usage.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create usage accountant", err)
		os.Exit(1)
	}

	collaborator, err := paymentCollaborator(cfg, conn, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment collaborator", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		TransactionRunner: dbClient,
		Repo:              orders.NewRepository(conn),
		Catalog:           catalogService,
		Usage:             accountant,
		Outbox:            outboxService,
		Logger:            logg,
		Metrics:           metrics.NewOrderMetrics(prometheus.DefaultRegisterer),
		TaxBasisPoints:    cfg.Billing.TaxRateBasisPoints,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	subscriptionsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		TransactionRunner: dbClient,
		Repo:              subscriptions.NewRepository(conn),
		Plans:             catalog.NewRepository(conn),
		Usage:             accountant,
		Payments:          collaborator,
		Outbox:            outboxService,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Catalog:       catalogService,
			Orders:        ordersService,
			Subscriptions: subscriptionsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// paymentCollaborator selects Square when a token is configured. Local
// development runs against the in-memory collaborator so charges never leave
// the process.
func paymentCollaborator(cfg *config.Config, conn *gorm.DB, logg *logger.Logger) (payments.Collaborator, error) {
	if cfg.Square.AccessToken == "" {
		if cfg.App.IsProd() {
			return nil, fmt.Errorf("square access token required in production")
		}
		logg.Warn(context.Background(), "square token missing, using in-memory payment collaborator")
		return payments.NewInMemoryCollaborator(), nil
	}

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		return nil, err
	}
	return payments.NewSquareCollaborator(payments.SquareParams{
		Repo:   payments.NewRepository(conn),
		Client: squareClient,
		Logger: logg,
	})
}
