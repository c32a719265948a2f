package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/pkg/enums"
)

// ExternalReservationShadow mirrors one reservation attempt pushed to the ERP.
// ReservationKey doubles as the idempotency token sent on every retry.
type ExternalReservationShadow struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ReservationKey   string             `gorm:"column:reservation_key;type:text;not null;uniqueIndex:ux_external_reservation_shadows_key"`
	ReservationID    *uuid.UUID         `gorm:"column:reservation_id;type:uuid;index"`
	UserID           string             `gorm:"column:user_id;type:text;not null"`
	SessionID        *string            `gorm:"column:session_id;type:text"`
	SKU              string             `gorm:"column:sku;type:text;not null"`
	LocationCode     string             `gorm:"column:location_code;type:text;not null"`
	Quantity         int                `gorm:"column:quantity;not null"`
	Status           enums.ShadowStatus `gorm:"column:status;type:text;not null"`
	ERPReservationID *string            `gorm:"column:erp_reservation_id;type:text"`
	ErrorCode        *string            `gorm:"column:error_code;type:text"`
	ErrorMessage     *string            `gorm:"column:error_message;type:text"`
	ExpiresAt        time.Time          `gorm:"column:expires_at;not null"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *ExternalReservationShadow) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
