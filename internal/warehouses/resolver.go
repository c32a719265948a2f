package warehouses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/stockhold/pkg/db/models"
)

var (
	// ErrNoWarehouse is returned when an item names no warehouse and no default exists.
	ErrNoWarehouse = errors.New("no warehouse specified and no default warehouse found")
	// ErrWarehouseNotFound is returned when an explicit warehouse id is unknown or inactive.
	ErrWarehouseNotFound = errors.New("warehouse not found")
)

// Resolver picks the warehouse a reservation item is held against.
// Precedence: explicit id, then the configured default id, then the row flagged is_default.
type Resolver struct {
	repo      Repository
	defaultID string
}

// NewResolver builds a resolver; defaultID may be empty.
func NewResolver(repo Repository, defaultID string) (*Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("warehouse repository required")
	}
	return &Resolver{repo: repo, defaultID: strings.TrimSpace(defaultID)}, nil
}

func (r *Resolver) Resolve(ctx context.Context, requested string) (*models.Warehouse, error) {
	if id := strings.TrimSpace(requested); id != "" {
		return r.lookup(ctx, id)
	}
	if r.defaultID != "" {
		warehouse, err := r.lookup(ctx, r.defaultID)
		if err == nil {
			return warehouse, nil
		}
		if !errors.Is(err, ErrWarehouseNotFound) {
			return nil, err
		}
	}
	warehouse, err := r.repo.FindDefault(ctx)
	if err != nil {
		return nil, err
	}
	if warehouse == nil {
		return nil, ErrNoWarehouse
	}
	return warehouse, nil
}

func (r *Resolver) lookup(ctx context.Context, id string) (*models.Warehouse, error) {
	warehouse, err := r.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if warehouse == nil || !warehouse.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrWarehouseNotFound, id)
	}
	return warehouse, nil
}
