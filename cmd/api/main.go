package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/stockhold/api/routes"
	"github.com/angelmondragon/stockhold/internal/app"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	rt, err := app.Boot(context.Background(), app.Options{Kind: "api", WithRedis: true})
	if err != nil {
		app.Exit(context.Background(), nil, logger.New(logger.Options{ServiceName: "api"}), "failed to boot", err)
	}
	logg, cfg := rt.Logger, rt.Config

	svc, err := app.NewServices(app.ServicesParams{
		Config:  cfg,
		DB:      rt.DB,
		Logger:  logg,
		Metrics: metrics.NewReservationMetrics(prometheus.DefaultRegisterer),
		WithERP: true,
	})
	if err != nil {
		app.Exit(context.Background(), rt, logg, "failed to wire services", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := rt.SignalContext()
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"addr":         addr,
		"erp_enabled":  cfg.ERP.Enabled,
		"erp_required": cfg.ERP.Mandatory,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:           rt.DB,
			Cache:        rt.Redis,
			Reservations: svc.Reservations,
			Inventory:    svc.Ledger,
			Adjuster:     svc.Ledger,
			Movements:    svc.Movements,
			DeadLetters:  svc.DeadLetters,
			Metrics:      metrics.Handler(prometheus.DefaultGatherer),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := app.Run(ctx, app.HTTPServer(server, shutdownTimeout)); err != nil {
		app.Exit(ctx, rt, logg, "api server stopped unexpectedly", err)
	}
	if err := rt.Close(); err != nil {
		logg.Error(ctx, "shutdown cleanup failed", err)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
