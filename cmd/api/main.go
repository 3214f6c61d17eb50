package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spenzahq/webhook-relay/api/controllers"
	"github.com/spenzahq/webhook-relay/api/routes"
	"github.com/spenzahq/webhook-relay/internal/auth"
	"github.com/spenzahq/webhook-relay/internal/delivery"
	"github.com/spenzahq/webhook-relay/internal/events"
	"github.com/spenzahq/webhook-relay/internal/ingest"
	"github.com/spenzahq/webhook-relay/internal/subscriptions"
	"github.com/spenzahq/webhook-relay/internal/users"
	"github.com/spenzahq/webhook-relay/pkg/config"
	"github.com/spenzahq/webhook-relay/pkg/db"
	"github.com/spenzahq/webhook-relay/pkg/logger"
	"github.com/spenzahq/webhook-relay/pkg/metrics"
	"github.com/spenzahq/webhook-relay/pkg/migrate"
	"github.com/spenzahq/webhook-relay/pkg/redis"
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

	eventsRepo := events.NewRepository(dbClient.DB())
	subsRepo := subscriptions.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	subscriptionsService, err := subscriptions.NewService(subsRepo, eventsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	deliveryMetrics := metrics.NewDeliveryMetrics(prometheus.DefaultRegisterer)
	dispatcher := delivery.NewDispatcher(cfg.Delivery, logg, deliveryMetrics)

	ingestService, err := ingest.NewService(subsRepo, eventsRepo, dispatcher, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ingest service", err)
		os.Exit(1)
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(context.Background(), "failed to extract sql db handle", err)
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
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			AuthService:   authService,
			IngestService: ingestService,
			Subscriptions: subscriptionsService,
			Migrate: controllers.MigrateDeps{
				DB:     sqlDB,
				Driver: cfg.DB.Driver,
				Dir:    migrate.DefaultDir,
			},
			Metrics: promhttp.Handler(),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
