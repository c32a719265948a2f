package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/pkg/enums"
)

// MovementLogEntry is an append-only audit row for every quantity-affecting event.
type MovementLogEntry struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	MovementType    enums.MovementType   `gorm:"column:movement_type;type:text;not null;index"`
	ProductID       int64                `gorm:"column:product_id;not null;index"`
	FromWarehouseID *string              `gorm:"column:from_warehouse_id;type:text"`
	ToWarehouseID   *string              `gorm:"column:to_warehouse_id;type:text"`
	Quantity        int                  `gorm:"column:quantity;not null"`
	OrderID         *string              `gorm:"column:order_id;type:text"`
	ReservationID   *uuid.UUID           `gorm:"column:reservation_id;type:uuid;index"`
	PerformedBy     string               `gorm:"column:performed_by;type:text;not null"`
	Reason          string               `gorm:"column:reason;type:text;not null"`
	Status          enums.MovementStatus `gorm:"column:status;type:text;not null"`
	Metadata        json.RawMessage      `gorm:"column:metadata;type:jsonb"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (m *MovementLogEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
