package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spenzahq/webhook-relay/internal/cron"
	"github.com/spenzahq/webhook-relay/internal/delivery"
	"github.com/spenzahq/webhook-relay/internal/events"
	"github.com/spenzahq/webhook-relay/internal/retry"
	"github.com/spenzahq/webhook-relay/pkg/config"
	"github.com/spenzahq/webhook-relay/pkg/db"
	"github.com/spenzahq/webhook-relay/pkg/logger"
	"github.com/spenzahq/webhook-relay/pkg/metrics"
	"github.com/spenzahq/webhook-relay/pkg/migrate"
	"github.com/spenzahq/webhook-relay/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "retry-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "retry-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	deliveryMetrics := metrics.NewDeliveryMetrics(prometheus.DefaultRegisterer)
	dispatcher := delivery.NewDispatcher(cfg.Delivery, logg, deliveryMetrics)

	job, err := retry.NewJob(events.NewRepository(dbClient.DB()), dispatcher, logg, cfg.Retry.MaxAttempts)
	if err != nil {
		logg.Error(ctx, "failed to create retry job", err)
		os.Exit(1)
	}

	lockKey := fmt.Sprintf("relay:retry-worker:lock:%s", cfg.App.Env)
	lock, err := cron.NewRedisLock(redisClient, lockKey, cfg.Retry.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create worker lock", err)
		os.Exit(1)
	}

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(job),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Retry.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	logg.Info(logg.WithField(ctx, "interval", cfg.Retry.Interval.String()), "starting retry worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "retry worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "retry worker stopped")
}
