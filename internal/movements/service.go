package movements

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
	"github.com/angelmondragon/stockhold/pkg/pagination"
)

// Standard reasons recorded on movement entries.
const (
	ReasonReserved         = "Stock reserved for order"
	ReasonExpired          = "Reservation expired"
	ReasonReleased         = "Reservation released"
	ReasonFulfilled        = "Reservation fulfilled"
	ReasonExternalReserved = "External reservation confirmed"
	ReasonExternalFailed   = "External reservation failed"
)

// Service records and lists quantity-affecting events.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Record(ctx context.Context, input RecordInput) (*models.MovementLogEntry, error)
	List(ctx context.Context, filter Filter, params pagination.Params) (*ListResult, error)
	ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.MovementLogEntry, error)
}

// RecordInput captures the immutable data a movement entry requires.
// Quantity is signed: negative takes stock out of availability, positive returns it.
type RecordInput struct {
	Type            enums.MovementType   `json:"movement_type"`
	ProductID       int64                `json:"product_id"`
	FromWarehouseID *string              `json:"from_warehouse_id,omitempty"`
	ToWarehouseID   *string              `json:"to_warehouse_id,omitempty"`
	Quantity        int                  `json:"quantity"`
	OrderID         *string              `json:"order_id,omitempty"`
	ReservationID   *uuid.UUID           `json:"reservation_id,omitempty"`
	PerformedBy     string               `json:"performed_by"`
	Reason          string               `json:"reason"`
	Status          enums.MovementStatus `json:"status"`
	Metadata        any                  `json:"metadata,omitempty"`
}

// ListResult is one page of movement entries.
type ListResult struct {
	Entries    []models.MovementLogEntry `json:"entries"`
	NextCursor string                    `json:"next_cursor,omitempty"`
}

type service struct {
	repo Repository
}

// NewService wires a movement service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("movement repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Record(ctx context.Context, input RecordInput) (*models.MovementLogEntry, error) {
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid movement type %q", input.Type)
	}
	if !input.Type.SignMatches(input.Quantity) {
		return nil, fmt.Errorf("quantity %d does not match movement type %s", input.Quantity, input.Type)
	}
	if input.ProductID <= 0 {
		return nil, fmt.Errorf("product id is required")
	}
	if strings.TrimSpace(input.PerformedBy) == "" {
		return nil, fmt.Errorf("performed_by is required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, fmt.Errorf("reason is required")
	}
	status := input.Status
	if status == "" {
		status = enums.MovementStatusCompleted
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid movement status %q", status)
	}

	var metadata json.RawMessage
	if input.Metadata != nil {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode movement metadata: %w", err)
		}
		metadata = raw
	}

	entry := &models.MovementLogEntry{
		MovementType:    input.Type,
		ProductID:       input.ProductID,
		FromWarehouseID: input.FromWarehouseID,
		ToWarehouseID:   input.ToWarehouseID,
		Quantity:        input.Quantity,
		OrderID:         input.OrderID,
		ReservationID:   input.ReservationID,
		PerformedBy:     input.PerformedBy,
		Reason:          input.Reason,
		Status:          status,
		Metadata:        metadata,
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) List(ctx context.Context, filter Filter, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid movement type %q", filter.Type)
	}
	entries, next, err := s.repo.List(ctx, filter, params.Limit, cursor)
	if err != nil {
		return nil, err
	}
	result := &ListResult{Entries: entries}
	if next != nil {
		result.NextCursor = next.String()
	}
	return result, nil
}

func (s *service) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.MovementLogEntry, error) {
	if reservationID == uuid.Nil {
		return nil, fmt.Errorf("reservation id is required")
	}
	return s.repo.ListByReservation(ctx, reservationID)
}

// WarehouseRef is a small helper for the optional warehouse columns.
func WarehouseRef(id string) *string {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	return &id
}
