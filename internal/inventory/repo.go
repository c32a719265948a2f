package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/internal/repo"
	"github.com/angelmondragon/stockhold/pkg/db/models"
)

// Repository is the ledger's storage contract. Every mutation is a single
// conditional UPDATE whose affected-row count decides success.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetOrCreate(ctx context.Context, productID int64, warehouseID string) (*models.InventoryRecord, bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryRecord, error)
	FindByProductWarehouse(ctx context.Context, productID int64, warehouseID string) (*models.InventoryRecord, error)
	ListByProduct(ctx context.Context, productID int64) ([]models.InventoryRecord, error)
	TryReserve(ctx context.Context, id uuid.UUID, expectedVersion int64, qty int) (*models.InventoryRecord, error)
	Release(ctx context.Context, id uuid.UUID, qty int) (*models.InventoryRecord, error)
	Fulfill(ctx context.Context, id uuid.UUID, qty int) (*models.InventoryRecord, error)
	Adjust(ctx context.Context, id uuid.UUID, expectedVersion int64, delta int) (*models.InventoryRecord, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

// GetOrCreate inserts an empty record when none exists. Concurrent creators
// converge on the same row; created reports whether this call inserted it.
func (r *repository) GetOrCreate(ctx context.Context, productID int64, warehouseID string) (*models.InventoryRecord, bool, error) {
	record := &models.InventoryRecord{
		ProductID:   productID,
		WarehouseID: warehouseID,
	}
	stored, created, err := repo.InsertOrLoad(r.DB(ctx), record, []string{"product_id", "warehouse_id"}, func() (*models.InventoryRecord, error) {
		return r.FindByProductWarehouse(ctx, productID, warehouseID)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, ErrRecordNotFound
	}
	return stored, created, err
}

// FindByID returns nil when the record does not exist.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryRecord, error) {
	return repo.First[models.InventoryRecord](r.DB(ctx).Where("id = ?", id))
}

// FindByProductWarehouse returns nil when the record does not exist.
func (r *repository) FindByProductWarehouse(ctx context.Context, productID int64, warehouseID string) (*models.InventoryRecord, error) {
	return repo.First[models.InventoryRecord](r.DB(ctx).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID))
}

func (r *repository) ListByProduct(ctx context.Context, productID int64) ([]models.InventoryRecord, error) {
	var rows []models.InventoryRecord
	if err := r.DB(ctx).
		Where("product_id = ?", productID).
		Order("warehouse_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TryReserve moves qty from available to reserved iff the stored version still
// equals expectedVersion and enough stock is available. A failed call never mutates.
func (r *repository) TryReserve(ctx context.Context, id uuid.UUID, expectedVersion int64, qty int) (*models.InventoryRecord, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	res := r.DB(ctx).
		Model(&models.InventoryRecord{}).
		Where("id = ? AND version = ? AND quantity_on_hand - quantity_reserved >= ?", id, expectedVersion, qty).
		Updates(map[string]any{
			"quantity_reserved": gorm.Expr("quantity_reserved + ?", qty),
			"version":           gorm.Expr("version + 1"),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 {
		return r.mustFind(ctx, id)
	}

	// Zero rows: read only to classify the failure.
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case current == nil:
		return nil, ErrRecordNotFound
	case current.Version != expectedVersion:
		return nil, ErrConcurrentModification
	default:
		return nil, &InsufficientStockError{Available: current.QuantityAvailable(), Requested: qty}
	}
}

// Release returns qty from reserved to available.
func (r *repository) Release(ctx context.Context, id uuid.UUID, qty int) (*models.InventoryRecord, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	res := r.DB(ctx).
		Model(&models.InventoryRecord{}).
		Where("id = ? AND quantity_reserved >= ?", id, qty).
		Updates(map[string]any{
			"quantity_reserved": gorm.Expr("quantity_reserved - ?", qty),
			"version":           gorm.Expr("version + 1"),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 {
		return r.mustFind(ctx, id)
	}
	return nil, r.classifyMissing(ctx, id, ErrReleaseExceedsReserved)
}

// Fulfill consumes a hold: qty leaves both reserved and on hand.
func (r *repository) Fulfill(ctx context.Context, id uuid.UUID, qty int) (*models.InventoryRecord, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	res := r.DB(ctx).
		Model(&models.InventoryRecord{}).
		Where("id = ? AND quantity_reserved >= ? AND quantity_on_hand >= ?", id, qty, qty).
		Updates(map[string]any{
			"quantity_on_hand":  gorm.Expr("quantity_on_hand - ?", qty),
			"quantity_reserved": gorm.Expr("quantity_reserved - ?", qty),
			"version":           gorm.Expr("version + 1"),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 {
		return r.mustFind(ctx, id)
	}
	return nil, r.classifyMissing(ctx, id, ErrReleaseExceedsReserved)
}

// Adjust changes on-hand stock by delta under the version guard. On-hand may
// never drop below what is currently reserved.
func (r *repository) Adjust(ctx context.Context, id uuid.UUID, expectedVersion int64, delta int) (*models.InventoryRecord, error) {
	if delta == 0 {
		return nil, ErrInvalidQuantity
	}
	res := r.DB(ctx).
		Model(&models.InventoryRecord{}).
		Where("id = ? AND version = ? AND quantity_on_hand + ? >= quantity_reserved", id, expectedVersion, delta).
		Updates(map[string]any{
			"quantity_on_hand": gorm.Expr("quantity_on_hand + ?", delta),
			"version":          gorm.Expr("version + 1"),
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 {
		return r.mustFind(ctx, id)
	}

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case current == nil:
		return nil, ErrRecordNotFound
	case current.Version != expectedVersion:
		return nil, ErrConcurrentModification
	default:
		return nil, ErrAdjustBelowReserved
	}
}

func (r *repository) mustFind(ctx context.Context, id uuid.UUID) (*models.InventoryRecord, error) {
	record, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrRecordNotFound
	}
	return record, nil
}

func (r *repository) classifyMissing(ctx context.Context, id uuid.UUID, fallback error) error {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrRecordNotFound
	}
	return fallback
}
