// Package app holds the process wiring shared by the api, cron-worker and
// outbox-publisher binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/stockhold/pkg/config"
	"github.com/angelmondragon/stockhold/pkg/db"
	"github.com/angelmondragon/stockhold/pkg/instance"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/migrate"
	"github.com/angelmondragon/stockhold/pkg/redis"
)

type Options struct {
	// Kind names the binary in logs and is copied to cfg.Service.Kind.
	Kind      string
	WithRedis bool
}

// Runtime is a booted process: configuration, logger and the shared clients.
type Runtime struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client

	closers []func() error
}

// Boot loads .env and the environment, then connects to the database (running
// dev migrations when enabled) and, if asked, Redis. On failure everything
// opened so far is closed again.
func Boot(ctx context.Context, opts Options) (*Runtime, error) {
	bootLog := logger.New(logger.Options{ServiceName: opts.Kind})
	if err := godotenv.Load(); err != nil {
		bootLog.Warn(ctx, ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = opts.Kind

	rt := &Runtime{
		Kind:   opts.Kind,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: opts.Kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			Format:      cfg.App.LogFormat,
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}
	if err := rt.connect(ctx, opts); err != nil {
		return nil, multierr.Append(err, rt.Close())
	}
	return rt, nil
}

func (rt *Runtime) connect(ctx context.Context, opts Options) error {
	dbClient, err := db.New(ctx, rt.Config.DB, rt.Logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	rt.DB = dbClient
	rt.closers = append(rt.closers, dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, rt.Config, rt.Logger, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	if opts.WithRedis {
		redisClient, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rt.Redis = redisClient
		rt.closers = append(rt.closers, redisClient.Close)
	}
	return nil
}

// OnClose registers fn to run on Close, before the clients opened by Boot.
func (rt *Runtime) OnClose(fn func() error) {
	rt.closers = append(rt.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close() error {
	var err error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, rt.closers[i]())
	}
	rt.closers = nil
	return err
}

// SignalContext is canceled on SIGINT or SIGTERM and carries the process
// identity in its log fields.
func (rt *Runtime) SignalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return rt.Logger.WithFields(ctx, map[string]any{
		"env":         rt.Config.App.Env,
		"serviceKind": rt.Kind,
		"instance":    instance.GetID(),
	}), stop
}

// Exit logs err and terminates the process. Deferred calls do not run, so
// Close is called first.
func Exit(ctx context.Context, rt *Runtime, logg *logger.Logger, msg string, err error) {
	if rt != nil {
		if closeErr := rt.Close(); closeErr != nil {
			logg.Error(ctx, "shutdown cleanup failed", closeErr)
		}
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
