package inventory

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
)

var (
	ErrInsufficientStock      = pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")
	ErrConcurrentModification = pkgerrors.New(pkgerrors.CodeConcurrentModification, "inventory record modified concurrently")
	ErrRecordNotFound         = pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
	ErrReleaseExceedsReserved = pkgerrors.New(pkgerrors.CodeStateConflict, "release exceeds reserved quantity")
	ErrAdjustBelowReserved    = pkgerrors.New(pkgerrors.CodeStateConflict, "adjustment would leave on-hand below reserved")
	ErrInvalidQuantity        = pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
)

// InsufficientStockError carries the quantities behind a failed reservation.
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: available %d, requested %d", e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
