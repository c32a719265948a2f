package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/internal/movements"
	dbpkg "github.com/angelmondragon/stockhold/pkg/db"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/metrics"
	"github.com/angelmondragon/stockhold/pkg/outbox"
	"github.com/angelmondragon/stockhold/pkg/outbox/payloads"
)

const DefaultMaxAttempts = 3

// Service is the ledger's public surface.
type Service interface {
	GetOrCreate(ctx context.Context, productID int64, warehouseID string) (*models.InventoryRecord, bool, error)
	Get(ctx context.Context, productID int64, warehouseID string) (*models.InventoryRecord, error)
	ListByProduct(ctx context.Context, productID int64) ([]models.InventoryRecord, error)
	Reserve(ctx context.Context, recordID uuid.UUID, qty int) (*models.InventoryRecord, error)
	Release(ctx context.Context, recordID uuid.UUID, qty int) (*models.InventoryRecord, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.InventoryRecord, error)
}

// AdjustInput is an operator correction of on-hand stock.
type AdjustInput struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	WarehouseID string `json:"warehouse_id" validate:"required"`
	Delta       int    `json:"delta" validate:"required,ne=0"`
	Reason      string `json:"reason" validate:"required"`
	PerformedBy string `json:"-"`
}

// ServiceParams wires the ledger service.
type ServiceParams struct {
	Repo        Repository
	DB          dbpkg.TxRunner
	Movements   movements.Service
	Outbox      outbox.Emitter
	Logger      *logger.Logger
	Metrics     *metrics.ReservationMetrics
	MaxAttempts int
}

type service struct {
	repo        Repository
	db          dbpkg.TxRunner
	movements   movements.Service
	outbox      outbox.Emitter
	logg        *logger.Logger
	metrics     *metrics.ReservationMetrics
	maxAttempts int
}

// NewService builds the ledger service. DB, Movements and Outbox are only
// required by Adjust.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:        params.Repo,
		db:          params.DB,
		movements:   params.Movements,
		outbox:      params.Outbox,
		logg:        logg,
		metrics:     params.Metrics,
		maxAttempts: attempts,
	}, nil
}

func (s *service) GetOrCreate(ctx context.Context, productID int64, warehouseID string) (*models.InventoryRecord, bool, error) {
	return s.repo.GetOrCreate(ctx, productID, warehouseID)
}

func (s *service) Get(ctx context.Context, productID int64, warehouseID string) (*models.InventoryRecord, error) {
	record, err := s.repo.FindByProductWarehouse(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrRecordNotFound
	}
	return record, nil
}

func (s *service) ListByProduct(ctx context.Context, productID int64) ([]models.InventoryRecord, error) {
	return s.repo.ListByProduct(ctx, productID)
}

// Reserve runs the optimistic loop: read the current version, attempt the
// conditional update, and on a version conflict start over. Insufficient
// stock ends the loop immediately.
func (s *service) Reserve(ctx context.Context, recordID uuid.UUID, qty int) (*models.InventoryRecord, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current, err := s.repo.FindByID(ctx, recordID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, ErrRecordNotFound
		}
		updated, err := s.repo.TryReserve(ctx, recordID, current.Version, qty)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrConcurrentModification) {
			return nil, err
		}
		s.metrics.IncConflict()
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"inventory_record_id": recordID.String(),
			"attempt":             attempt,
			"expected_version":    current.Version,
		})
		s.logg.Debug(logCtx, "inventory version conflict, retrying")
	}
	return nil, ErrConcurrentModification
}

func (s *service) Release(ctx context.Context, recordID uuid.UUID, qty int) (*models.InventoryRecord, error) {
	return s.repo.Release(ctx, recordID, qty)
}

// Adjust applies an operator correction under the same retry loop as Reserve.
// The CAS, the adjustment movement and the outbox event commit together.
func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.InventoryRecord, error) {
	if s.db == nil || s.movements == nil || s.outbox == nil {
		return nil, fmt.Errorf("inventory adjust requires db, movements and outbox")
	}
	if input.ProductID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if strings.TrimSpace(input.WarehouseID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse_id is required")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	performedBy := strings.TrimSpace(input.PerformedBy)
	if performedBy == "" {
		performedBy = string(enums.MemberRoleSystem)
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		var updated *models.InventoryRecord
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			current, _, err := repo.GetOrCreate(ctx, input.ProductID, input.WarehouseID)
			if err != nil {
				return err
			}
			updated, err = repo.Adjust(ctx, current.ID, current.Version, input.Delta)
			if err != nil {
				return err
			}

			from, to := movements.WarehouseRef(input.WarehouseID), (*string)(nil)
			if input.Delta > 0 {
				from, to = nil, movements.WarehouseRef(input.WarehouseID)
			}
			if _, err := s.movements.WithTx(tx).Record(ctx, movements.RecordInput{
				Type:            enums.MovementTypeAdjustment,
				ProductID:       input.ProductID,
				FromWarehouseID: from,
				ToWarehouseID:   to,
				Quantity:        input.Delta,
				PerformedBy:     performedBy,
				Reason:          input.Reason,
				Metadata: map[string]any{
					"inventory_record_id": updated.ID.String(),
					"version":             updated.Version,
				},
			}); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventInventoryAdjusted,
				AggregateType: enums.AggregateInventoryRecord,
				AggregateID:   updated.ID,
				Actor:         &outbox.ActorRef{UserID: performedBy},
				Data: payloads.InventoryAdjustedEvent{
					InventoryRecordID: updated.ID,
					ProductID:         updated.ProductID,
					WarehouseID:       updated.WarehouseID,
					Delta:             input.Delta,
					QuantityOnHand:    updated.QuantityOnHand,
					QuantityReserved:  updated.QuantityReserved,
					Version:           updated.Version,
					Reason:            input.Reason,
				},
			})
		})
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrConcurrentModification) {
			return nil, err
		}
		s.metrics.IncConflict()
	}
	return nil, ErrConcurrentModification
}

// UnitsToSquareMeters converts a piece count into floor area using the record's
// packaging metadata. ok is false when the record lacks conversion data.
func UnitsToSquareMeters(record models.InventoryRecord, pieces int) (decimal.Decimal, bool) {
	if record.PiecesPerBox == nil || *record.PiecesPerBox <= 0 || !record.SqmPerBox.Valid {
		return decimal.Zero, false
	}
	boxes := decimal.NewFromInt(int64(pieces)).Div(decimal.NewFromInt(int64(*record.PiecesPerBox)))
	return boxes.Mul(record.SqmPerBox.Decimal).Round(4), true
}
