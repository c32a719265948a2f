package reservations

import (
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
)

var (
	ErrNotFound  = pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	ErrNotActive = pkgerrors.New(pkgerrors.CodeStateConflict, "reservation is no longer active")
)

// Per-item failure reasons reported in a reserve result.
const (
	ReasonNoWarehouse            = "no warehouse specified and no default warehouse found"
	ReasonWarehouseNotFound      = "warehouse not found"
	ReasonNotInStock             = "product not in stock"
	ReasonInsufficientStock      = "insufficient stock"
	ReasonConcurrentModification = "concurrent modification"
	ReasonStorageError           = "storage error"
	ReasonExternalFailed         = "external reservation failed"
)
