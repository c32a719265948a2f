package reservations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/internal/erp"
	"github.com/angelmondragon/stockhold/internal/inventory"
	"github.com/angelmondragon/stockhold/internal/movements"
	"github.com/angelmondragon/stockhold/internal/warehouses"
	dbpkg "github.com/angelmondragon/stockhold/pkg/db"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/metrics"
	"github.com/angelmondragon/stockhold/pkg/outbox"
	"github.com/angelmondragon/stockhold/pkg/outbox/payloads"
)

const (
	defaultDuration = 15 * time.Minute
	bridgeErrorCode = "BRIDGE_ERROR"
)

// WarehouseResolver picks the warehouse an item is held against.
type WarehouseResolver interface {
	Resolve(ctx context.Context, requested string) (*models.Warehouse, error)
}

// ExternalReserver mirrors a local reservation into the ERP.
type ExternalReserver interface {
	ReserveExternal(ctx context.Context, input erp.ExternalInput) (*erp.Outcome, error)
}

// ManagerParams wires the reservation manager. External is optional.
type ManagerParams struct {
	DB              dbpkg.TxRunner
	Repo            Repository
	Ledger          inventory.Service
	Records         inventory.Repository
	Warehouses      WarehouseResolver
	Movements       movements.Service
	Outbox          outbox.Emitter
	External        ExternalReserver
	ERPMandatory    bool
	DefaultDuration time.Duration
	MaxDuration     time.Duration
	MaxItems        int
	Clock           func() time.Time
	Logger          *logger.Logger
	Metrics         *metrics.ReservationMetrics
}

// Manager creates holds against the ledger and moves them out of active.
type Manager struct {
	db              dbpkg.TxRunner
	repo            Repository
	ledger          inventory.Service
	records         inventory.Repository
	warehouses      WarehouseResolver
	movements       movements.Service
	outbox          outbox.Emitter
	external        ExternalReserver
	erpMandatory    bool
	defaultDuration time.Duration
	maxDuration     time.Duration
	maxItems        int
	clock           func() time.Time
	logg            *logger.Logger
	metrics         *metrics.ReservationMetrics
}

// NewManager validates dependencies and returns a Manager.
func NewManager(params ManagerParams) (*Manager, error) {
	switch {
	case params.DB == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Repo == nil:
		return nil, fmt.Errorf("reservation repository required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("inventory service required")
	case params.Records == nil:
		return nil, fmt.Errorf("inventory repository required")
	case params.Warehouses == nil:
		return nil, fmt.Errorf("warehouse resolver required")
	case params.Movements == nil:
		return nil, fmt.Errorf("movement service required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	duration := params.DefaultDuration
	if duration <= 0 {
		duration = defaultDuration
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Manager{
		db:              params.DB,
		repo:            params.Repo,
		ledger:          params.Ledger,
		records:         params.Records,
		warehouses:      params.Warehouses,
		movements:       params.Movements,
		outbox:          params.Outbox,
		external:        params.External,
		erpMandatory:    params.ERPMandatory,
		defaultDuration: duration,
		maxDuration:     params.MaxDuration,
		maxItems:        params.MaxItems,
		clock:           clock,
		logg:            logg,
		metrics:         params.Metrics,
	}, nil
}

func (m *Manager) now() time.Time {
	return m.clock().UTC()
}

// Reserve processes each item in order and independently. Only a structurally
// invalid request returns an error; item failures are reported in the result.
func (m *Manager) Reserve(ctx context.Context, input ReserveInput) (*Result, error) {
	duration, err := m.validate(input)
	if err != nil {
		return nil, err
	}

	ctx = m.logg.WithUserID(ctx, input.UserID)
	result := &Result{Reservations: []Record{}, Failures: []Failure{}}
	for _, item := range input.Items {
		record, failure := m.reserveItem(ctx, input, item, duration)
		if failure != nil {
			result.Failures = append(result.Failures, *failure)
			m.metrics.IncItem("failed")
			continue
		}
		result.Reservations = append(result.Reservations, *record)
		m.metrics.IncItem("reserved")
	}
	result.Success = len(result.Failures) == 0
	return result, nil
}

func (m *Manager) validate(input ReserveInput) (time.Duration, error) {
	if len(input.Items) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "items are required")
	}
	if m.maxItems > 0 && len(input.Items) > m.maxItems {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "at most %d items per request", m.maxItems)
	}
	if strings.TrimSpace(input.UserID) == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user_id is required")
	}
	for i, item := range input.Items {
		if item.ProductID <= 0 {
			return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "items[%d].product_id is required", i)
		}
		if item.Quantity <= 0 {
			return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "items[%d].quantity must be positive", i)
		}
	}
	if input.DurationMinutes < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "duration_minutes must be positive")
	}
	duration := m.defaultDuration
	if input.DurationMinutes > 0 {
		duration = time.Duration(input.DurationMinutes) * time.Minute
	}
	if m.maxDuration > 0 && duration > m.maxDuration {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "duration_minutes may not exceed %d", int(m.maxDuration/time.Minute))
	}
	return duration, nil
}

func (m *Manager) reserveItem(ctx context.Context, input ReserveInput, item ItemInput, duration time.Duration) (*Record, *Failure) {
	fail := func(reason string) *Failure {
		return &Failure{ProductID: item.ProductID, WarehouseID: item.WarehouseID, Reason: reason}
	}
	logCtx := m.logg.WithFields(ctx, map[string]any{
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
	})

	warehouse, err := m.warehouses.Resolve(ctx, item.WarehouseID)
	if err != nil {
		switch {
		case errors.Is(err, warehouses.ErrNoWarehouse):
			return nil, fail(ReasonNoWarehouse)
		case errors.Is(err, warehouses.ErrWarehouseNotFound):
			return nil, fail(ReasonWarehouseNotFound)
		}
		m.logg.Error(logCtx, "resolve warehouse", err)
		return nil, fail(ReasonStorageError)
	}
	fail = func(reason string) *Failure {
		return &Failure{ProductID: item.ProductID, WarehouseID: warehouse.ID, Reason: reason}
	}
	logCtx = m.logg.WithField(logCtx, "warehouse_id", warehouse.ID)

	stock, created, err := m.ledger.GetOrCreate(ctx, item.ProductID, warehouse.ID)
	if err != nil {
		m.logg.Error(logCtx, "load inventory record", err)
		return nil, fail(ReasonStorageError)
	}
	if created {
		failure := fail(ReasonNotInStock)
		failure.Available = intPtr(0)
		failure.Requested = intPtr(item.Quantity)
		return nil, failure
	}

	expiresAt := m.now().Add(duration)

	updated, err := m.ledger.Reserve(ctx, stock.ID, item.Quantity)
	if err != nil {
		var insufficient *inventory.InsufficientStockError
		switch {
		case errors.As(err, &insufficient):
			failure := fail(ReasonInsufficientStock)
			failure.Available = intPtr(insufficient.Available)
			failure.Requested = intPtr(insufficient.Requested)
			return nil, failure
		case errors.Is(err, inventory.ErrInsufficientStock):
			failure := fail(ReasonInsufficientStock)
			failure.Requested = intPtr(item.Quantity)
			return nil, failure
		case errors.Is(err, inventory.ErrConcurrentModification):
			return nil, fail(ReasonConcurrentModification)
		}
		m.logg.Error(logCtx, "reserve inventory", err)
		return nil, fail(ReasonStorageError)
	}

	reservation := &models.Reservation{
		InventoryRecordID: stock.ID,
		ProductID:         item.ProductID,
		WarehouseID:       warehouse.ID,
		Quantity:          item.Quantity,
		OrderID:           input.OrderID,
		CartSessionID:     input.CartSessionID,
		UserID:            input.UserID,
		Status:            enums.ReservationStatusActive,
		ExpiresAt:         expiresAt,
	}
	if err := m.persistReservation(ctx, reservation); err != nil {
		m.logg.Error(logCtx, "persist reservation", err)
		m.compensate(logCtx, stock.ID, item.Quantity)
		return nil, fail(ReasonStorageError)
	}
	m.metrics.IncTransition(string(enums.ReservationStatusActive))

	record := ToRecord(*reservation)
	if m.external == nil || updated.ERPSKU == nil || strings.TrimSpace(*updated.ERPSKU) == "" {
		return &record, nil
	}

	outcome := m.mirror(logCtx, reservation, warehouse, *updated.ERPSKU)
	if outcome.Reserved {
		record.ERPReservationID = outcome.ERPReservationID
		return &record, nil
	}
	if !m.erpMandatory {
		record.ExternalError = &ExternalError{Code: outcome.ErrorCode, Message: outcome.ErrorMessage}
		return &record, nil
	}

	if _, err := m.close(ctx, reservation, enums.ReservationStatusReleased, input.UserID, movements.ReasonExternalFailed); err != nil {
		m.logg.Error(logCtx, "roll back reservation after erp failure", err)
	}
	failure := fail(ReasonExternalFailed)
	failure.Error = outcome.ErrorCode
	return nil, failure
}

// persistReservation writes the reservation, its movement entry and its event
// in one transaction.
func (m *Manager) persistReservation(ctx context.Context, reservation *models.Reservation) error {
	return m.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := m.repo.WithTx(tx).Create(ctx, reservation); err != nil {
			return err
		}
		if _, err := m.movements.WithTx(tx).Record(ctx, movements.RecordInput{
			Type:            enums.MovementTypeReservation,
			ProductID:       reservation.ProductID,
			FromWarehouseID: movements.WarehouseRef(reservation.WarehouseID),
			Quantity:        -reservation.Quantity,
			OrderID:         reservation.OrderID,
			ReservationID:   &reservation.ID,
			PerformedBy:     reservation.UserID,
			Reason:          movements.ReasonReserved,
		}); err != nil {
			return err
		}
		return m.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationCreated,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         &outbox.ActorRef{UserID: reservation.UserID},
			Data: payloads.ReservationCreatedEvent{
				ReservationID:     reservation.ID,
				InventoryRecordID: reservation.InventoryRecordID,
				ProductID:         reservation.ProductID,
				WarehouseID:       reservation.WarehouseID,
				Quantity:          reservation.Quantity,
				UserID:            reservation.UserID,
				CartSessionID:     reservation.CartSessionID,
				OrderID:           reservation.OrderID,
				ExpiresAt:         reservation.ExpiresAt,
			},
		})
	})
}

// compensate returns a ledger delta whose reservation row could not be written.
func (m *Manager) compensate(ctx context.Context, recordID uuid.UUID, qty int) {
	if _, err := m.ledger.Release(ctx, recordID, qty); err != nil {
		m.metrics.IncCompensation("failed")
		m.logg.Error(ctx, "compensating ledger release failed", err)
		return
	}
	m.metrics.IncCompensation("ok")
}

func (m *Manager) mirror(ctx context.Context, reservation *models.Reservation, warehouse *models.Warehouse, sku string) *erp.Outcome {
	outcome, err := m.external.ReserveExternal(ctx, erp.ExternalInput{
		ReservationKey: erp.Key(reservation.UserID, sku, reservation.ID.String()),
		ReservationID:  &reservation.ID,
		UserID:         reservation.UserID,
		SessionID:      reservation.CartSessionID,
		OrderID:        reservation.OrderID,
		ProductID:      reservation.ProductID,
		WarehouseID:    reservation.WarehouseID,
		SKU:            sku,
		LocationCode:   warehouse.Code,
		Quantity:       reservation.Quantity,
		ExpiresAt:      reservation.ExpiresAt,
	})
	if err != nil {
		m.logg.Error(ctx, "external stock bridge", err)
		return &erp.Outcome{ErrorCode: bridgeErrorCode, ErrorMessage: err.Error()}
	}
	return outcome
}

// Get returns ErrNotFound when the reservation does not exist.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	reservation, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, ErrNotFound
	}
	return reservation, nil
}

// ListActiveByCart lists the active holds of a cart session. A non-empty
// ownerID restricts the result to that user's reservations.
func (m *Manager) ListActiveByCart(ctx context.Context, cartSessionID, ownerID string) ([]models.Reservation, error) {
	if strings.TrimSpace(cartSessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart_session_id is required")
	}
	return m.repo.ListActiveByCart(ctx, cartSessionID, strings.TrimSpace(ownerID))
}

// ListExpired feeds the expiry sweeper.
func (m *Manager) ListExpired(ctx context.Context, limit int) ([]models.Reservation, error) {
	return m.repo.ListExpired(ctx, m.now(), limit)
}

// Release cancels an active reservation and returns its stock.
func (m *Manager) Release(ctx context.Context, id uuid.UUID, actor, reason string) (*models.Reservation, error) {
	if strings.TrimSpace(reason) == "" {
		reason = movements.ReasonReleased
	}
	return m.closeExplicit(ctx, id, enums.ReservationStatusReleased, actor, reason)
}

// Fulfill consumes an active reservation when its order completes.
func (m *Manager) Fulfill(ctx context.Context, id uuid.UUID, actor string) (*models.Reservation, error) {
	return m.closeExplicit(ctx, id, enums.ReservationStatusFulfilled, actor, movements.ReasonFulfilled)
}

// ReleaseByCart releases the active reservations of a cart session owned by
// ownerID, or all of them when ownerID is empty. It returns how many
// reservations it moved out of active.
func (m *Manager) ReleaseByCart(ctx context.Context, cartSessionID, ownerID, actor string) (int, error) {
	rows, err := m.ListActiveByCart(ctx, cartSessionID, ownerID)
	if err != nil {
		return 0, err
	}
	return m.releaseAll(ctx, rows, actor)
}

// ReleaseByOrder releases every active reservation held for an order.
func (m *Manager) ReleaseByOrder(ctx context.Context, orderID, actor string) (int, error) {
	if strings.TrimSpace(orderID) == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order_id is required")
	}
	rows, err := m.repo.ListActiveByOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	return m.releaseAll(ctx, rows, actor)
}

func (m *Manager) releaseAll(ctx context.Context, rows []models.Reservation, actor string) (int, error) {
	var (
		released int
		errs     error
	)
	for i := range rows {
		moved, err := m.close(ctx, &rows[i], enums.ReservationStatusReleased, actor, movements.ReasonReleased)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release %s: %w", rows[i].ID, err))
			continue
		}
		if moved {
			released++
		}
	}
	return released, errs
}

// Expire moves an overdue reservation to expired and returns its stock. A
// reservation that already left active is skipped and reports false.
func (m *Manager) Expire(ctx context.Context, reservation models.Reservation) (bool, error) {
	return m.close(ctx, &reservation, enums.ReservationStatusExpired, string(enums.MemberRoleSystem), movements.ReasonExpired)
}

func (m *Manager) closeExplicit(ctx context.Context, id uuid.UUID, status enums.ReservationStatus, actor, reason string) (*models.Reservation, error) {
	reservation, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	moved, err := m.close(ctx, reservation, status, actor, reason)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrNotActive
	}
	return m.Get(ctx, id)
}

// close runs one status transition. The conditional status update gates the
// ledger change, so a reservation is never returned to stock twice.
func (m *Manager) close(ctx context.Context, reservation *models.Reservation, status enums.ReservationStatus, actor, reason string) (bool, error) {
	if strings.TrimSpace(actor) == "" {
		actor = string(enums.MemberRoleSystem)
	}
	at := m.now()
	var moved bool
	err := m.db.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := m.repo.WithTx(tx).CloseActive(ctx, reservation.ID, status, at)
		if err != nil || !ok {
			return err
		}

		records := m.records.WithTx(tx)
		entry := movements.RecordInput{
			ProductID:     reservation.ProductID,
			OrderID:       reservation.OrderID,
			ReservationID: &reservation.ID,
			PerformedBy:   actor,
			Reason:        reason,
		}
		eventType := enums.EventReservationReleased
		switch status {
		case enums.ReservationStatusFulfilled:
			if _, err := records.Fulfill(ctx, reservation.InventoryRecordID, reservation.Quantity); err != nil {
				return err
			}
			entry.Type = enums.MovementTypeFulfillment
			entry.FromWarehouseID = movements.WarehouseRef(reservation.WarehouseID)
			entry.Quantity = -reservation.Quantity
			eventType = enums.EventReservationFulfilled
		default:
			if _, err := records.Release(ctx, reservation.InventoryRecordID, reservation.Quantity); err != nil {
				return err
			}
			entry.Type = enums.MovementTypeRelease
			entry.ToWarehouseID = movements.WarehouseRef(reservation.WarehouseID)
			entry.Quantity = reservation.Quantity
			if status == enums.ReservationStatusExpired {
				eventType = enums.EventReservationExpired
			}
		}
		if _, err := m.movements.WithTx(tx).Record(ctx, entry); err != nil {
			return err
		}
		if err := m.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Actor:         &outbox.ActorRef{UserID: actor},
			Data: payloads.ReservationClosedEvent{
				ReservationID:     reservation.ID,
				InventoryRecordID: reservation.InventoryRecordID,
				ProductID:         reservation.ProductID,
				WarehouseID:       reservation.WarehouseID,
				Quantity:          reservation.Quantity,
				Status:            status,
				Reason:            reason,
				ClosedAt:          at,
			},
		}); err != nil {
			return err
		}
		moved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if moved {
		m.metrics.IncTransition(string(status))
	}
	return moved, nil
}

func intPtr(v int) *int {
	return &v
}
