package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/stockhold/internal/app"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/metrics"
	"github.com/angelmondragon/stockhold/pkg/outbox"
	"github.com/angelmondragon/stockhold/pkg/outbox/registry"
	"github.com/angelmondragon/stockhold/pkg/outbox/relay"
	"github.com/angelmondragon/stockhold/pkg/pubsub"
)

const metricsShutdownTimeout = 5 * time.Second

func main() {
	rt, err := app.Boot(context.Background(), app.Options{Kind: "outbox-publisher"})
	if err != nil {
		app.Exit(context.Background(), nil, logger.New(logger.Options{ServiceName: "outbox-publisher"}), "failed to boot", err)
	}
	logg, cfg := rt.Logger, rt.Config

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		app.Exit(context.Background(), rt, logg, "failed to bootstrap pubsub", err)
	}
	rt.OnClose(pubsubClient.Close)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		app.Exit(context.Background(), rt, logg, "failed to build event registry", err)
	}
	outboxRelay, err := relay.New(relay.Params{
		Options:     relay.OptionsFromConfig(cfg.Outbox),
		Logger:      logg,
		DB:          rt.DB,
		Store:       outbox.NewRepository(rt.DB.DB()),
		DeadLetters: outbox.NewDLQRepository(rt.DB.DB()),
		Resolver:    eventRegistry,
		Publishers:  relay.GCPSource(pubsubClient),
		Pingers:     map[string]func(context.Context) error{"pubsub": pubsubClient.Ping},
		Metrics:     metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		app.Exit(context.Background(), rt, logg, "failed to create outbox relay", err)
	}

	ctx, stop := rt.SignalContext()
	defer stop()
	logg.Info(ctx, "starting outbox publisher")

	metricsServer := metrics.NewServer(":"+cfg.App.MetricsPort, prometheus.DefaultGatherer)
	if err := app.Run(ctx, outboxRelay.Run, app.HTTPServer(metricsServer, metricsShutdownTimeout)); err != nil {
		app.Exit(ctx, rt, logg, "outbox publisher stopped unexpectedly", err)
	}
	if err := rt.Close(); err != nil {
		logg.Error(ctx, "shutdown cleanup failed", err)
	}
	logg.Info(ctx, "outbox publisher shut down gracefully")
}
