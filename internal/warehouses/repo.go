package warehouses

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/internal/repo"
	"github.com/angelmondragon/stockhold/pkg/db/models"
)

// Repository reads warehouse metadata.
type Repository interface {
	FindByID(ctx context.Context, id string) (*models.Warehouse, error)
	FindDefault(ctx context.Context) (*models.Warehouse, error)
	List(ctx context.Context) ([]models.Warehouse, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a warehouse repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

// FindByID returns nil when the warehouse does not exist.
func (r *repository) FindByID(ctx context.Context, id string) (*models.Warehouse, error) {
	return repo.First[models.Warehouse](r.DB(ctx).Where("id = ?", id))
}

// FindDefault returns the active warehouse flagged as default, or nil.
func (r *repository) FindDefault(ctx context.Context) (*models.Warehouse, error) {
	return repo.First[models.Warehouse](r.DB(ctx).
		Where("is_default = ? AND is_active = ?", true, true).
		Order("created_at ASC"))
}

func (r *repository) List(ctx context.Context) ([]models.Warehouse, error) {
	var rows []models.Warehouse
	if err := r.DB(ctx).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
