package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/stockhold/internal/app"
	"github.com/angelmondragon/stockhold/internal/cron"
	"github.com/angelmondragon/stockhold/pkg/config"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/metrics"
	"github.com/angelmondragon/stockhold/pkg/outbox"
)

const metricsShutdownTimeout = 5 * time.Second

func main() {
	rt, err := app.Boot(context.Background(), app.Options{Kind: "cron-worker", WithRedis: true})
	if err != nil {
		app.Exit(context.Background(), nil, logger.New(logger.Options{ServiceName: "cron-worker"}), "failed to boot", err)
	}
	logg, cfg := rt.Logger, rt.Config

	svc, err := app.NewServices(app.ServicesParams{
		Config:  cfg,
		DB:      rt.DB,
		Logger:  logg,
		Metrics: metrics.NewReservationMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		app.Exit(context.Background(), rt, logg, "failed to wire services", err)
	}

	service, err := newScheduler(rt, cfg, svc)
	if err != nil {
		app.Exit(context.Background(), rt, logg, "failed to build cron service", err)
	}

	ctx, stop := rt.SignalContext()
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"interval": service.Interval().String()})
	logg.Info(ctx, "starting cron worker")

	metricsServer := metrics.NewServer(":"+cfg.App.MetricsPort, prometheus.DefaultGatherer)
	if err := app.Run(ctx, service.Run, app.HTTPServer(metricsServer, metricsShutdownTimeout)); err != nil {
		app.Exit(ctx, rt, logg, "cron worker stopped unexpectedly", err)
	}
	if err := rt.Close(); err != nil {
		logg.Error(ctx, "shutdown cleanup failed", err)
	}
	logg.Info(ctx, "cron worker shut down gracefully")
}

func newScheduler(rt *app.Runtime, cfg *config.Config, svc *app.Services) (*cron.Service, error) {
	logg := rt.Logger
	expiryJob, err := cron.NewReservationExpiryJob(cron.ReservationExpiryJobParams{
		Logger:    logg,
		Manager:   svc.Reservations,
		BatchSize: cfg.Sweeper.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("reservation expiry job: %w", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         rt.DB,
		Repository: outbox.NewRepository(rt.DB.DB()),
		Retention:  time.Duration(cfg.Outbox.RetentionDays) * 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	registry, err := cron.NewRegistry(expiryJob, retentionJob)
	if err != nil {
		return nil, err
	}
	lock, err := cron.NewRedisLock(rt.Redis, rt.Redis.LockKey(lockName(cfg.App.Env)), cfg.Sweeper.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("cron lock: %w", err)
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Sweeper.Interval,
	})
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("cron-worker:%s", env)
}
