package models

import "time"

// Warehouse is a stock location reservations can be placed against.
type Warehouse struct {
	ID        string    `gorm:"column:id;type:text;primaryKey"`
	Code      string    `gorm:"column:code;type:text;not null;uniqueIndex:ux_warehouses_code"`
	Name      string    `gorm:"column:name;type:text;not null"`
	IsDefault bool      `gorm:"column:is_default;not null;default:false"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
