package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold/pkg/enums"
)

// ReservationCreatedEvent is emitted when a hold is placed on stock.
type ReservationCreatedEvent struct {
	ReservationID     uuid.UUID `json:"reservation_id"`
	InventoryRecordID uuid.UUID `json:"inventory_record_id"`
	ProductID         int64     `json:"product_id"`
	WarehouseID       string    `json:"warehouse_id"`
	Quantity          int       `json:"quantity"`
	UserID            string    `json:"user_id"`
	CartSessionID     *string   `json:"cart_session_id,omitempty"`
	OrderID           *string   `json:"order_id,omitempty"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// ReservationClosedEvent is emitted when a hold leaves the active state.
// The same shape is used for release, expiry and fulfilment.
type ReservationClosedEvent struct {
	ReservationID     uuid.UUID               `json:"reservation_id"`
	InventoryRecordID uuid.UUID               `json:"inventory_record_id"`
	ProductID         int64                   `json:"product_id"`
	WarehouseID       string                  `json:"warehouse_id"`
	Quantity          int                     `json:"quantity"`
	Status            enums.ReservationStatus `json:"status"`
	Reason            string                  `json:"reason,omitempty"`
	ClosedAt          time.Time               `json:"closed_at"`
}

// InventoryAdjustedEvent is emitted when on-hand stock is corrected by an operator.
type InventoryAdjustedEvent struct {
	InventoryRecordID uuid.UUID `json:"inventory_record_id"`
	ProductID         int64     `json:"product_id"`
	WarehouseID       string    `json:"warehouse_id"`
	Delta             int       `json:"delta"`
	QuantityOnHand    int       `json:"quantity_on_hand"`
	QuantityReserved  int       `json:"quantity_reserved"`
	Version           int64     `json:"version"`
	Reason            string    `json:"reason"`
}
