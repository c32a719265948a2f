package erp

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/internal/repo"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
)

// ShadowRepository persists external reservation shadows. Status moves from
// pending exactly once.
type ShadowRepository interface {
	WithTx(tx *gorm.DB) ShadowRepository
	CreateOrLoad(ctx context.Context, shadow *models.ExternalReservationShadow) (*models.ExternalReservationShadow, bool, error)
	FindByKey(ctx context.Context, key string) (*models.ExternalReservationShadow, error)
	MarkReserved(ctx context.Context, key, erpReservationID string) (bool, error)
	MarkReleased(ctx context.Context, key, errorCode, errorMessage string) (bool, error)
}

type shadowRepository struct {
	repo.Base
}

// NewShadowRepository binds the shadow repository to db.
func NewShadowRepository(db *gorm.DB) ShadowRepository {
	return &shadowRepository{Base: repo.NewBase(db)}
}

func (r *shadowRepository) WithTx(tx *gorm.DB) ShadowRepository {
	return &shadowRepository{Base: r.Bind(tx)}
}

// CreateOrLoad inserts a pending shadow keyed by ReservationKey, or returns the
// existing row for that key. created reports whether this call inserted it.
func (r *shadowRepository) CreateOrLoad(ctx context.Context, shadow *models.ExternalReservationShadow) (*models.ExternalReservationShadow, bool, error) {
	if shadow.Status == "" {
		shadow.Status = enums.ShadowStatusPending
	}
	return repo.InsertOrLoad(r.DB(ctx), shadow, []string{"reservation_key"}, func() (*models.ExternalReservationShadow, error) {
		return r.FindByKey(ctx, shadow.ReservationKey)
	})
}

// FindByKey returns nil when no shadow exists for key.
func (r *shadowRepository) FindByKey(ctx context.Context, key string) (*models.ExternalReservationShadow, error) {
	return repo.First[models.ExternalReservationShadow](r.DB(ctx).Where("reservation_key = ?", key))
}

func (r *shadowRepository) MarkReserved(ctx context.Context, key, erpReservationID string) (bool, error) {
	return r.transition(ctx, key, map[string]any{
		"status":             enums.ShadowStatusReserved,
		"erp_reservation_id": erpReservationID,
	})
}

func (r *shadowRepository) MarkReleased(ctx context.Context, key, errorCode, errorMessage string) (bool, error) {
	return r.transition(ctx, key, map[string]any{
		"status":        enums.ShadowStatusReleased,
		"error_code":    errorCode,
		"error_message": errorMessage,
	})
}

func (r *shadowRepository) transition(ctx context.Context, key string, updates map[string]any) (bool, error) {
	updates["updated_at"] = time.Now().UTC()
	res := r.DB(ctx).
		Model(&models.ExternalReservationShadow{}).
		Where("reservation_key = ? AND status = ?", key, enums.ShadowStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
