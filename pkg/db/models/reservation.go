package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/pkg/enums"
)

// Reservation is a time-bounded hold against an InventoryRecord.
type Reservation struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	InventoryRecordID uuid.UUID               `gorm:"column:inventory_record_id;type:uuid;not null;index"`
	ProductID         int64                   `gorm:"column:product_id;not null"`
	WarehouseID       string                  `gorm:"column:warehouse_id;type:text;not null"`
	Quantity          int                     `gorm:"column:quantity;not null"`
	OrderID           *string                 `gorm:"column:order_id;type:text;index"`
	CartSessionID     *string                 `gorm:"column:cart_session_id;type:text;index"`
	UserID            string                  `gorm:"column:user_id;type:text;not null"`
	Status            enums.ReservationStatus `gorm:"column:status;type:text;not null;index:idx_reservations_status_expires"`
	ExpiresAt         time.Time               `gorm:"column:expires_at;not null;index:idx_reservations_status_expires"`
	ReleasedAt        *time.Time              `gorm:"column:released_at"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// IsExpired reports whether an active hold has outlived its expiry at now.
func (r Reservation) IsExpired(now time.Time) bool {
	return r.Status == enums.ReservationStatusActive && r.ExpiresAt.Before(now)
}
