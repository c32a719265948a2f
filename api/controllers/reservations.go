package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold/api/middleware"
	"github.com/angelmondragon/stockhold/api/responses"
	"github.com/angelmondragon/stockhold/api/validators"
	"github.com/angelmondragon/stockhold/internal/reservations"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
	"github.com/angelmondragon/stockhold/pkg/logger"
)

// ReservationService is the manager surface the HTTP layer drives.
type ReservationService interface {
	Reserve(ctx context.Context, input reservations.ReserveInput) (*reservations.Result, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	Release(ctx context.Context, id uuid.UUID, actor, reason string) (*models.Reservation, error)
	Fulfill(ctx context.Context, id uuid.UUID, actor string) (*models.Reservation, error)
	ReleaseByCart(ctx context.Context, cartSessionID, ownerID, actor string) (int, error)
}

type reserveRequest struct {
	Items           []reservations.ItemInput `json:"items" validate:"required,min=1,dive"`
	OrderID         *string                  `json:"order_id,omitempty"`
	CartSessionID   *string                  `json:"cart_session_id,omitempty"`
	UserID          string                   `json:"user_id,omitempty"`
	DurationMinutes int                      `json:"duration_minutes,omitempty" validate:"gte=0"`
}

type releaseRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=256"`
}

type cartReleaseResponse struct {
	CartSessionID string `json:"cart_session_id"`
	Released      int    `json:"released"`
}

// ReservationCreate reserves stock for every item and answers 200 when all
// items succeeded or 207 with the per-item breakdown otherwise.
func ReservationCreate(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		caller := middleware.UserIDFromContext(r.Context())
		if caller == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload reserveRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := strings.TrimSpace(payload.UserID)
		if userID == "" {
			userID = caller
		}
		if userID != caller && !isAdmin(r) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cannot reserve on behalf of another user"))
			return
		}

		result, err := svc.Reserve(r.Context(), reservations.ReserveInput{
			Items:           payload.Items,
			OrderID:         trimmedPtr(payload.OrderID),
			CartSessionID:   trimmedPtr(payload.CartSessionID),
			UserID:          userID,
			DurationMinutes: payload.DurationMinutes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, result.Outcome(), result)
	}
}

func ReservationGet(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := reservationIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservation, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !canAccess(r, reservation) {
			responses.WriteError(r.Context(), logg, w, reservations.ErrNotFound)
			return
		}
		responses.WriteSuccess(w, reservations.ToRecord(*reservation))
	}
}

// ReservationRelease cancels an active reservation. Releasing a reservation
// that already left active answers 422.
func ReservationRelease(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := reservationIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload releaseRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		if err := authorize(r, svc, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := svc.Release(r.Context(), id, middleware.UserIDFromContext(r.Context()), validators.SanitizeString(payload.Reason, 256))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservations.ToRecord(*reservation))
	}
}

func ReservationFulfill(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := reservationIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorize(r, svc, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservation, err := svc.Fulfill(r.Context(), id, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservations.ToRecord(*reservation))
	}
}

// CartRelease releases every active reservation held for a cart session.
func CartRelease(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartSessionID := strings.TrimSpace(chi.URLParam(r, "cartSessionId"))
		if cartSessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart session id is required"))
			return
		}
		caller := middleware.UserIDFromContext(r.Context())
		owner := caller
		if isAdmin(r) {
			owner = ""
		}
		released, err := svc.ReleaseByCart(r.Context(), cartSessionID, owner, caller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartReleaseResponse{CartSessionID: cartSessionID, Released: released})
	}
}

func reservationIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "reservationId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reservation id")
	}
	return id, nil
}

// authorize hides reservations owned by other users behind a 404.
func authorize(r *http.Request, svc ReservationService, id uuid.UUID) error {
	if isAdmin(r) {
		return nil
	}
	reservation, err := svc.Get(r.Context(), id)
	if err != nil {
		return err
	}
	if !canAccess(r, reservation) {
		return reservations.ErrNotFound
	}
	return nil
}

func canAccess(r *http.Request, reservation *models.Reservation) bool {
	if reservation == nil {
		return false
	}
	return isAdmin(r) || reservation.UserID == middleware.UserIDFromContext(r.Context())
}

func isAdmin(r *http.Request) bool {
	return middleware.RoleFromContext(r.Context()) == string(enums.MemberRoleAdmin)
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
