package erp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/internal/movements"
	dbpkg "github.com/angelmondragon/stockhold/pkg/db"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/metrics"
)

// Reserver is the ERP call surface the bridge depends on.
type Reserver interface {
	Reserve(ctx context.Context, req Request) Result
}

// ExternalInput describes one local reservation to mirror into the ERP.
type ExternalInput struct {
	ReservationKey string
	ReservationID  *uuid.UUID
	UserID         string
	SessionID      *string
	OrderID        *string
	ProductID      int64
	WarehouseID    string
	SKU            string
	LocationCode   string
	Quantity       int
	ExpiresAt      time.Time
}

// Outcome is the recorded result of a mirror attempt.
type Outcome struct {
	Reserved         bool   `json:"reserved"`
	ERPReservationID string `json:"erp_reservation_id,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
	// Replayed is true when the outcome came from an existing shadow and no call was made.
	Replayed bool `json:"-"`
}

// BridgeParams wires the bridge.
type BridgeParams struct {
	Client     Reserver
	Shadows    ShadowRepository
	Movements  movements.Service
	DB         dbpkg.TxRunner
	Logger     *logger.Logger
	Metrics    *metrics.ReservationMetrics
	// TTLMinutes is sent when the input carries no expiry.
	TTLMinutes int
	Clock      func() time.Time
}

// Bridge mirrors local reservations into the ERP using shadow rows as the
// idempotency ledger.
type Bridge struct {
	client     Reserver
	shadows    ShadowRepository
	movements  movements.Service
	db         dbpkg.TxRunner
	logg       *logger.Logger
	metrics    *metrics.ReservationMetrics
	ttlMinutes int
	now        func() time.Time
}

// NewBridge validates dependencies and returns a Bridge.
func NewBridge(params BridgeParams) (*Bridge, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("erp client required")
	}
	if params.Shadows == nil {
		return nil, fmt.Errorf("shadow repository required")
	}
	if params.Movements == nil {
		return nil, fmt.Errorf("movement service required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &Bridge{
		client:     params.Client,
		shadows:    params.Shadows,
		movements:  params.Movements,
		db:         params.DB,
		logg:       logg,
		metrics:    params.Metrics,
		ttlMinutes: params.TTLMinutes,
		now:        now,
	}, nil
}

// ReserveExternal loads or creates the pending shadow for the input key, calls
// the ERP once per pending shadow, and records the outcome on the shadow and in
// the movement log. Only storage failures are returned as errors.
func (b *Bridge) ReserveExternal(ctx context.Context, input ExternalInput) (*Outcome, error) {
	if strings.TrimSpace(input.ReservationKey) == "" {
		return nil, fmt.Errorf("reservation key is required")
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}

	shadow, _, err := b.shadows.CreateOrLoad(ctx, &models.ExternalReservationShadow{
		ReservationKey: input.ReservationKey,
		ReservationID:  input.ReservationID,
		UserID:         input.UserID,
		SessionID:      input.SessionID,
		SKU:            input.SKU,
		LocationCode:   input.LocationCode,
		Quantity:       input.Quantity,
		Status:         enums.ShadowStatusPending,
		ExpiresAt:      input.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("load external reservation shadow: %w", err)
	}
	if shadow.Status != enums.ShadowStatusPending {
		return recordedOutcome(shadow), nil
	}

	logCtx := b.logg.WithFields(ctx, map[string]any{
		"reservation_key": input.ReservationKey,
		"sku":             input.SKU,
		"location":        input.LocationCode,
	})

	start := time.Now()
	result := b.client.Reserve(ctx, Request{
		SKU:            input.SKU,
		Quantity:       input.Quantity,
		Location:       input.LocationCode,
		IdempotencyKey: input.ReservationKey,
		TTLMinutes:     b.holdMinutes(input.ExpiresAt),
	})
	b.metrics.ObserveERPCall(resultLabel(result), time.Since(start))
	if !result.OK {
		b.logg.Warn(logCtx, fmt.Sprintf("erp reservation failed: %s %s", result.ErrorCode, result.ErrorMessage))
	}

	var outcome *Outcome
	err = b.db.WithTx(ctx, func(tx *gorm.DB) error {
		shadows := b.shadows.WithTx(tx)
		var moved bool
		var err error
		if result.OK {
			moved, err = shadows.MarkReserved(ctx, input.ReservationKey, result.ReservationID)
		} else {
			moved, err = shadows.MarkReleased(ctx, input.ReservationKey, result.ErrorCode, result.ErrorMessage)
		}
		if err != nil {
			return err
		}
		if !moved {
			// Another caller settled this key first; report what it recorded.
			current, err := shadows.FindByKey(ctx, input.ReservationKey)
			if err != nil {
				return err
			}
			if current == nil {
				return gorm.ErrRecordNotFound
			}
			outcome = recordedOutcome(current)
			return nil
		}

		if _, err := b.movements.WithTx(tx).Record(ctx, movementFor(input, result)); err != nil {
			return err
		}
		outcome = &Outcome{
			Reserved:         result.OK,
			ERPReservationID: result.ReservationID,
			ErrorCode:        result.ErrorCode,
			ErrorMessage:     result.ErrorMessage,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record erp outcome: %w", err)
	}
	return outcome, nil
}

// holdMinutes matches the ERP hold to the local one, rounding up so the ERP
// never releases first.
func (b *Bridge) holdMinutes(expiresAt time.Time) int {
	if expiresAt.IsZero() {
		return b.ttlMinutes
	}
	remaining := expiresAt.Sub(b.now())
	if remaining <= 0 {
		return b.ttlMinutes
	}
	return int((remaining + time.Minute - 1) / time.Minute)
}

// movementFor audits the mirror attempt without moving stock: the local
// reservation entry already took the quantity out of availability.
func movementFor(input ExternalInput, result Result) movements.RecordInput {
	status := enums.MovementStatusCompleted
	reason := movements.ReasonExternalReserved
	if !result.OK {
		status = enums.MovementStatusFailed
		reason = movements.ReasonExternalFailed
	}
	metadata := map[string]any{
		"source":          "erp",
		"reservation_key": input.ReservationKey,
		"sku":             input.SKU,
		"location":        input.LocationCode,
		"quantity":        input.Quantity,
	}
	if result.OK {
		metadata["erp_reservation_id"] = result.ReservationID
		metadata["available_quantity"] = result.AvailableQuantity
	} else {
		metadata["error_code"] = result.ErrorCode
		metadata["error_message"] = result.ErrorMessage
	}
	performedBy := input.UserID
	if strings.TrimSpace(performedBy) == "" {
		performedBy = string(enums.MemberRoleSystem)
	}
	return movements.RecordInput{
		Type:            enums.MovementTypeExternalSync,
		ProductID:       input.ProductID,
		FromWarehouseID: movements.WarehouseRef(input.WarehouseID),
		Quantity:        0,
		OrderID:         input.OrderID,
		ReservationID:   input.ReservationID,
		PerformedBy:     performedBy,
		Reason:          reason,
		Status:          status,
		Metadata:        metadata,
	}
}

func recordedOutcome(shadow *models.ExternalReservationShadow) *Outcome {
	outcome := &Outcome{
		Reserved: shadow.Status == enums.ShadowStatusReserved,
		Replayed: true,
	}
	if shadow.ERPReservationID != nil {
		outcome.ERPReservationID = *shadow.ERPReservationID
	}
	if shadow.ErrorCode != nil {
		outcome.ErrorCode = *shadow.ErrorCode
	}
	if shadow.ErrorMessage != nil {
		outcome.ErrorMessage = *shadow.ErrorMessage
	}
	return outcome
}

func resultLabel(result Result) string {
	switch {
	case result.OK:
		return "reserved"
	case result.ErrorCode == CodeTimeout:
		return "timeout"
	case result.ErrorCode == CodeNetworkError:
		return "network_error"
	default:
		return "rejected"
	}
}
