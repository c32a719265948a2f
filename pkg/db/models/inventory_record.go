package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryRecord is the ledger row for one product in one warehouse.
// QuantityReserved never exceeds QuantityOnHand and Version only grows.
type InventoryRecord struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID        int64               `gorm:"column:product_id;not null;uniqueIndex:ux_inventory_records_product_warehouse"`
	WarehouseID      string              `gorm:"column:warehouse_id;type:text;not null;uniqueIndex:ux_inventory_records_product_warehouse"`
	QuantityOnHand   int                 `gorm:"column:quantity_on_hand;not null;default:0;check:chk_inventory_on_hand_nonneg,quantity_on_hand >= 0"`
	QuantityReserved int                 `gorm:"column:quantity_reserved;not null;default:0;check:chk_inventory_reserved_bounds,quantity_reserved >= 0 AND quantity_reserved <= quantity_on_hand"`
	Version          int64               `gorm:"column:version;not null;default:0"`
	PiecesPerBox     *int                `gorm:"column:pieces_per_box"`
	SqmPerBox        decimal.NullDecimal `gorm:"column:sqm_per_box;type:numeric(12,4)"`
	ERPSKU           *string             `gorm:"column:erp_sku;type:text"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *InventoryRecord) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// QuantityAvailable is on hand minus reserved, floored at zero.
func (r InventoryRecord) QuantityAvailable() int {
	available := r.QuantityOnHand - r.QuantityReserved
	if available < 0 {
		return 0
	}
	return available
}

// ERPManaged reports whether holds on this record are mirrored to the ERP.
func (r InventoryRecord) ERPManaged() bool {
	return r.ERPSKU != nil && *r.ERPSKU != ""
}
