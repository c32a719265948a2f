package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/stockhold/api/controllers"
	"github.com/angelmondragon/stockhold/api/middleware"
	"github.com/angelmondragon/stockhold/pkg/config"
	"github.com/angelmondragon/stockhold/pkg/db"
	"github.com/angelmondragon/stockhold/pkg/enums"
	"github.com/angelmondragon/stockhold/pkg/logger"
	pkgredis "github.com/angelmondragon/stockhold/pkg/redis"
)

// Cache is the redis surface the API edge uses.
type Cache interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Dependencies carries the services the router mounts.
type Dependencies struct {
	DB           db.Pinger
	Cache        Cache
	Reservations controllers.ReservationService
	Inventory    controllers.InventoryReader
	Adjuster     controllers.InventoryAdjuster
	Movements    controllers.MovementLister
	DeadLetters  controllers.DeadLetterLister
	Metrics      http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	var idempotencyStore pkgredis.IdempotencyStore
	var cachePinger controllers.Pinger
	if deps.Cache != nil {
		idempotencyStore = deps.Cache
		cachePinger = deps.Cache
	}
	var dbPinger controllers.Pinger
	if deps.DB != nil {
		dbPinger = deps.DB
	}

	reservePolicy := middleware.NewRateLimitPolicy("reserve", cfg.HTTP.ReserveRateWindow, cfg.HTTP.ReserveRateLimit)
	var limiter interface {
		FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error)
	}
	if deps.Cache != nil {
		limiter = deps.Cache
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbPinger, cachePinger, logg))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/reservations", func(r chi.Router) {
			r.With(middleware.RateLimit(reservePolicy, limiter, logg)).
				Post("/", controllers.ReservationCreate(deps.Reservations, logg))
			r.Route("/{reservationId}", func(r chi.Router) {
				r.Get("/", controllers.ReservationGet(deps.Reservations, logg))
				r.Get("/movements", controllers.ReservationMovements(deps.Reservations, deps.Movements, logg))
				r.Post("/release", controllers.ReservationRelease(deps.Reservations, logg))
				r.Post("/fulfill", controllers.ReservationFulfill(deps.Reservations, logg))
			})
		})

		r.Post("/carts/{cartSessionId}/release", controllers.CartRelease(deps.Reservations, logg))
		r.Get("/inventory/{productId}", controllers.InventoryGet(deps.Inventory, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.MemberRoleAdmin), logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Post("/inventory/adjust", controllers.AdminInventoryAdjust(deps.Adjuster, logg))
		r.Get("/movements", controllers.AdminMovementList(deps.Movements, logg))
		r.Get("/outbox/dlq", controllers.AdminDeadLetterList(deps.DeadLetters, logg))
	})

	return r
}
