package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/internal/repo"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
)

// Repository persists reservations. Status leaves active through
// CloseActive only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	CloseActive(ctx context.Context, id uuid.UUID, status enums.ReservationStatus, at time.Time) (bool, error)
	// ListActiveByCart narrows to userID unless it is empty.
	ListActiveByCart(ctx context.Context, cartSessionID, userID string) ([]models.Reservation, error)
	ListActiveByOrder(ctx context.Context, orderID string) ([]models.Reservation, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a reservation repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, reservation *models.Reservation) error {
	return r.DB(ctx).Create(reservation).Error
}

// FindByID returns nil when the reservation does not exist.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return repo.First[models.Reservation](r.DB(ctx).Where("id = ?", id))
}

// CloseActive moves an active reservation to status. It reports false when the
// reservation already left active, in which case nothing changed.
func (r *repository) CloseActive(ctx context.Context, id uuid.UUID, status enums.ReservationStatus, at time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, enums.ReservationStatusActive).
		Updates(map[string]any{
			"status":      status,
			"released_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListActiveByCart(ctx context.Context, cartSessionID, userID string) ([]models.Reservation, error) {
	query := r.DB(ctx).Where("cart_session_id = ?", cartSessionID)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	return listActive(query)
}

func (r *repository) ListActiveByOrder(ctx context.Context, orderID string) ([]models.Reservation, error) {
	return listActive(r.DB(ctx).Where("order_id = ?", orderID))
}

func listActive(query *gorm.DB) ([]models.Reservation, error) {
	var rows []models.Reservation
	if err := query.
		Where("status = ?", enums.ReservationStatusActive).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListExpired returns active reservations whose expiry is before now, oldest first.
func (r *repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []models.Reservation
	if err := r.DB(ctx).
		Where("status = ? AND expires_at < ?", enums.ReservationStatusActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
