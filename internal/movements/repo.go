package movements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/internal/repo"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	"github.com/angelmondragon/stockhold/pkg/pagination"
)

// Repository persists movement log entries. It is append-only: there is no
// update or delete path.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry *models.MovementLogEntry) error
	List(ctx context.Context, filter Filter, limit int, cursor *pagination.Cursor) ([]models.MovementLogEntry, *pagination.Cursor, error)
	ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.MovementLogEntry, error)
}

// Filter narrows movement listings for auditing.
type Filter struct {
	ProductID     *int64
	WarehouseID   string
	Type          enums.MovementType
	ReservationID *uuid.UUID
}

type repository struct {
	repo.Base
}

// NewRepository returns a movement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Append(ctx context.Context, entry *models.MovementLogEntry) error {
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) List(ctx context.Context, filter Filter, limit int, cursor *pagination.Cursor) ([]models.MovementLogEntry, *pagination.Cursor, error) {
	normalized := pagination.NormalizeLimit(limit)
	query := r.DB(ctx).Model(&models.MovementLogEntry{})
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.WarehouseID != "" {
		query = query.Where("(from_warehouse_id = ? OR to_warehouse_id = ?)", filter.WarehouseID, filter.WarehouseID)
	}
	if filter.Type != "" {
		query = query.Where("movement_type = ?", filter.Type)
	}
	if filter.ReservationID != nil {
		query = query.Where("reservation_id = ?", *filter.ReservationID)
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var entries []models.MovementLogEntry
	if err := query.Order("created_at DESC, id DESC").Limit(normalized + 1).Find(&entries).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Split(entries, normalized, func(entry models.MovementLogEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: entry.CreatedAt, ID: entry.ID}
	})
	return page, next, nil
}

func (r *repository) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.MovementLogEntry, error) {
	var entries []models.MovementLogEntry
	if err := r.DB(ctx).
		Where("reservation_id = ?", reservationID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
