package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold/api/middleware"
	"github.com/angelmondragon/stockhold/api/responses"
	"github.com/angelmondragon/stockhold/api/validators"
	"github.com/angelmondragon/stockhold/internal/inventory"
	"github.com/angelmondragon/stockhold/internal/movements"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/pagination"
)

// InventoryAdjuster applies operator stock corrections.
type InventoryAdjuster interface {
	Adjust(ctx context.Context, input inventory.AdjustInput) (*models.InventoryRecord, error)
}

// MovementLister reads the movement log.
type MovementLister interface {
	List(ctx context.Context, filter movements.Filter, params pagination.Params) (*movements.ListResult, error)
	ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.MovementLogEntry, error)
}

// DeadLetterLister reads terminally failed outbox events.
type DeadLetterLister interface {
	List(ctx context.Context, eventType enums.OutboxEventType, limit int) ([]models.OutboxDLQ, error)
}

type movementResponse struct {
	ID              uuid.UUID            `json:"id"`
	MovementType    enums.MovementType   `json:"movement_type"`
	ProductID       int64                `json:"product_id"`
	FromWarehouseID *string              `json:"from_warehouse_id,omitempty"`
	ToWarehouseID   *string              `json:"to_warehouse_id,omitempty"`
	Quantity        int                  `json:"quantity"`
	OrderID         *string              `json:"order_id,omitempty"`
	ReservationID   *uuid.UUID           `json:"reservation_id,omitempty"`
	PerformedBy     string               `json:"performed_by"`
	Reason          string               `json:"reason"`
	Status          enums.MovementStatus `json:"status"`
	Metadata        json.RawMessage      `json:"metadata,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

type movementPage struct {
	Entries    []movementResponse `json:"entries"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type deadLetterResponse struct {
	ID            uuid.UUID                  `json:"id"`
	EventID       uuid.UUID                  `json:"event_id"`
	EventType     enums.OutboxEventType      `json:"event_type"`
	AggregateType enums.OutboxAggregateType  `json:"aggregate_type"`
	AggregateID   uuid.UUID                  `json:"aggregate_id"`
	Payload       json.RawMessage            `json:"payload"`
	ErrorReason   enums.OutboxDLQErrorReason `json:"error_reason"`
	ErrorMessage  *string                    `json:"error_message,omitempty"`
	AttemptCount  int                        `json:"attempt_count"`
	FailedAt      time.Time                  `json:"failed_at"`
}

func newMovementResponses(entries []models.MovementLogEntry) []movementResponse {
	out := make([]movementResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, movementResponse{
			ID:              entry.ID,
			MovementType:    entry.MovementType,
			ProductID:       entry.ProductID,
			FromWarehouseID: entry.FromWarehouseID,
			ToWarehouseID:   entry.ToWarehouseID,
			Quantity:        entry.Quantity,
			OrderID:         entry.OrderID,
			ReservationID:   entry.ReservationID,
			PerformedBy:     entry.PerformedBy,
			Reason:          entry.Reason,
			Status:          entry.Status,
			Metadata:        entry.Metadata,
			CreatedAt:       entry.CreatedAt,
		})
	}
	return out
}

// AdminInventoryAdjust applies a signed on-hand correction. The ledger bumps
// the record version like any other write.
func AdminInventoryAdjust(svc InventoryAdjuster, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload inventory.AdjustInput
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload.Reason = validators.SanitizeString(payload.Reason, 256)
		payload.PerformedBy = middleware.UserIDFromContext(r.Context())

		record, err := svc.Adjust(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInventoryRecordResponse(*record))
	}
}

// AdminMovementList pages through the movement log, newest first.
func AdminMovementList(svc MovementLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := movementFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), filter, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, movementPage{Entries: newMovementResponses(page.Entries), NextCursor: page.NextCursor})
	}
}

// ReservationMovements lists the audit trail of one reservation.
func ReservationMovements(reservationsSvc ReservationService, svc MovementLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := reservationIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorize(r, reservationsSvc, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.ListByReservation(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newMovementResponses(entries))
	}
}

func AdminDeadLetterList(repo DeadLetterLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var eventType enums.OutboxEventType
		if raw := strings.TrimSpace(r.URL.Query().Get("event_type")); raw != "" {
			parsed, err := enums.ParseOutboxEventType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event_type"))
				return
			}
			eventType = parsed
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := repo.List(r.Context(), eventType, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list dead letters"))
			return
		}
		out := make([]deadLetterResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, deadLetterResponse{
				ID:            row.ID,
				EventID:       row.EventID,
				EventType:     row.EventType,
				AggregateType: row.AggregateType,
				AggregateID:   row.AggregateID,
				Payload:       row.Payload,
				ErrorReason:   row.ErrorReason,
				ErrorMessage:  row.ErrorMessage,
				AttemptCount:  row.AttemptCount,
				FailedAt:      row.FailedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

func movementFilterFromQuery(r *http.Request) (movements.Filter, error) {
	query := r.URL.Query()
	var filter movements.Filter

	if raw := strings.TrimSpace(query.Get("product_id")); raw != "" {
		id, err := validators.ParseProductID("product_id", raw)
		if err != nil {
			return filter, err
		}
		filter.ProductID = &id
	}
	filter.WarehouseID = strings.TrimSpace(query.Get("warehouse_id"))
	if raw := strings.TrimSpace(query.Get("type")); raw != "" {
		movementType, err := enums.ParseMovementType(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type")
		}
		filter.Type = movementType
	}
	if raw := strings.TrimSpace(query.Get("reservation_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reservation_id")
		}
		filter.ReservationID = &id
	}
	return filter, nil
}
