package reservations

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
)

// ItemInput is one line of a reserve request.
type ItemInput struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	WarehouseID string `json:"warehouse_id,omitempty"`
}

// ReserveInput is a multi-item reserve request. DurationMinutes of zero
// selects the configured default.
type ReserveInput struct {
	Items           []ItemInput `json:"items" validate:"required,min=1,dive"`
	OrderID         *string     `json:"order_id,omitempty"`
	CartSessionID   *string     `json:"cart_session_id,omitempty"`
	UserID          string      `json:"user_id"`
	DurationMinutes int         `json:"duration_minutes,omitempty" validate:"gte=0"`
}

// ExternalError reports an advisory ERP failure on a reservation that was kept.
type ExternalError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Record is the API view of a reservation.
type Record struct {
	ID                uuid.UUID               `json:"id"`
	InventoryRecordID uuid.UUID               `json:"inventory_record_id"`
	ProductID         int64                   `json:"product_id"`
	WarehouseID       string                  `json:"warehouse_id"`
	Quantity          int                     `json:"quantity"`
	OrderID           *string                 `json:"order_id,omitempty"`
	CartSessionID     *string                 `json:"cart_session_id,omitempty"`
	UserID            string                  `json:"user_id"`
	Status            enums.ReservationStatus `json:"status"`
	ExpiresAt         time.Time               `json:"expires_at"`
	ReleasedAt        *time.Time              `json:"released_at,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	ERPReservationID  string                  `json:"erp_reservation_id,omitempty"`
	ExternalError     *ExternalError          `json:"external_error,omitempty"`
}

// Failure explains why one item could not be reserved.
type Failure struct {
	ProductID   int64  `json:"product_id"`
	WarehouseID string `json:"warehouse_id,omitempty"`
	Reason      string `json:"reason"`
	Available   *int   `json:"available,omitempty"`
	Requested   *int   `json:"requested,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Result is the per-item breakdown of a reserve request.
type Result struct {
	Success      bool      `json:"success"`
	Reservations []Record  `json:"reservations"`
	Failures     []Failure `json:"failures"`
}

// Outcome maps the result to an HTTP status: 200 when every item succeeded,
// 207 when any item failed.
func (r Result) Outcome() int {
	if len(r.Failures) == 0 {
		return http.StatusOK
	}
	return http.StatusMultiStatus
}

// ToRecord converts a stored reservation into its API view.
func ToRecord(reservation models.Reservation) Record {
	return Record{
		ID:                reservation.ID,
		InventoryRecordID: reservation.InventoryRecordID,
		ProductID:         reservation.ProductID,
		WarehouseID:       reservation.WarehouseID,
		Quantity:          reservation.Quantity,
		OrderID:           reservation.OrderID,
		CartSessionID:     reservation.CartSessionID,
		UserID:            reservation.UserID,
		Status:            reservation.Status,
		ExpiresAt:         reservation.ExpiresAt,
		ReleasedAt:        reservation.ReleasedAt,
		CreatedAt:         reservation.CreatedAt,
	}
}
