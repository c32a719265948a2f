package app

import (
	"time"

	"github.com/angelmondragon/stockhold/internal/erp"
	"github.com/angelmondragon/stockhold/internal/inventory"
	"github.com/angelmondragon/stockhold/internal/movements"
	"github.com/angelmondragon/stockhold/internal/reservations"
	"github.com/angelmondragon/stockhold/internal/warehouses"
	"github.com/angelmondragon/stockhold/pkg/config"
	"github.com/angelmondragon/stockhold/pkg/db"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/metrics"
	"github.com/angelmondragon/stockhold/pkg/outbox"
)

// Services is the reservation domain graph built on one database.
type Services struct {
	Movements    movements.Service
	Outbox       *outbox.Service
	Ledger       inventory.Service
	Records      inventory.Repository
	Warehouses   *warehouses.Resolver
	Reservations *reservations.Manager
	DeadLetters  *outbox.DLQRepository
}

// ServicesParams configure NewServices. Bridge stays nil unless the ERP is
// enabled; expiry never calls the ERP.
type ServicesParams struct {
	Config  *config.Config
	DB      *db.Client
	Logger  *logger.Logger
	Metrics *metrics.ReservationMetrics
	WithERP bool
}

func NewServices(p ServicesParams) (*Services, error) {
	cfg, conn := p.Config, p.DB.DB()
	s := &Services{
		Outbox:      outbox.NewService(outbox.NewRepository(conn), p.Logger),
		Records:     inventory.NewRepository(conn),
		DeadLetters: outbox.NewDLQRepository(conn),
	}

	var err error
	if s.Movements, err = movements.NewService(movements.NewRepository(conn)); err != nil {
		return nil, err
	}
	s.Ledger, err = inventory.NewService(inventory.ServiceParams{
		Repo:        s.Records,
		DB:          p.DB,
		Movements:   s.Movements,
		Outbox:      s.Outbox,
		Logger:      p.Logger,
		Metrics:     p.Metrics,
		MaxAttempts: cfg.Ledger.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	if s.Warehouses, err = warehouses.NewResolver(warehouses.NewRepository(conn), cfg.Reservation.DefaultWarehouseID); err != nil {
		return nil, err
	}

	params := reservations.ManagerParams{
		DB:              p.DB,
		Repo:            reservations.NewRepository(conn),
		Ledger:          s.Ledger,
		Records:         s.Records,
		Warehouses:      s.Warehouses,
		Movements:       s.Movements,
		Outbox:          s.Outbox,
		ERPMandatory:    cfg.ERP.Mandatory,
		DefaultDuration: cfg.Reservation.DefaultDuration(),
		MaxDuration:     time.Duration(cfg.Reservation.MaxDurationMinutes) * time.Minute,
		MaxItems:        cfg.Reservation.MaxItems,
		Logger:          p.Logger,
		Metrics:         p.Metrics,
	}
	if p.WithERP && cfg.ERP.Enabled {
		bridge, err := newBridge(cfg.ERP, p.DB, s.Movements, p.Logger, p.Metrics)
		if err != nil {
			return nil, err
		}
		params.External = bridge
	}
	if s.Reservations, err = reservations.NewManager(params); err != nil {
		return nil, err
	}
	return s, nil
}

func newBridge(cfg config.ERPConfig, conn *db.Client, moves movements.Service, logg *logger.Logger, m *metrics.ReservationMetrics) (*erp.Bridge, error) {
	client, err := erp.NewClient(cfg.BaseURL, cfg.APIToken, erp.WithTimeout(cfg.Timeout))
	if err != nil {
		return nil, err
	}
	return erp.NewBridge(erp.BridgeParams{
		Client:     client,
		Shadows:    erp.NewShadowRepository(conn.DB()),
		Movements:  moves,
		DB:         conn,
		Logger:     logg,
		Metrics:    m,
		TTLMinutes: cfg.TTLMinutes,
	})
}
