package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/stockhold/api/responses"
	"github.com/angelmondragon/stockhold/api/validators"
	"github.com/angelmondragon/stockhold/internal/inventory"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/logger"
)

// InventoryReader is the read side of the ledger.
type InventoryReader interface {
	Get(ctx context.Context, productID int64, warehouseID string) (*models.InventoryRecord, error)
	ListByProduct(ctx context.Context, productID int64) ([]models.InventoryRecord, error)
}

type inventoryRecordResponse struct {
	ID                uuid.UUID        `json:"id"`
	ProductID         int64            `json:"product_id"`
	WarehouseID       string           `json:"warehouse_id"`
	QuantityOnHand    int              `json:"quantity_on_hand"`
	QuantityReserved  int              `json:"quantity_reserved"`
	QuantityAvailable int              `json:"quantity_available"`
	Version           int64            `json:"version"`
	PiecesPerBox      *int             `json:"pieces_per_box,omitempty"`
	SqmPerBox         *decimal.Decimal `json:"sqm_per_box,omitempty"`
	AvailableSqm      *decimal.Decimal `json:"available_sqm,omitempty"`
	ERPSKU            *string          `json:"erp_sku,omitempty"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func newInventoryRecordResponse(record models.InventoryRecord) inventoryRecordResponse {
	resp := inventoryRecordResponse{
		ID:                record.ID,
		ProductID:         record.ProductID,
		WarehouseID:       record.WarehouseID,
		QuantityOnHand:    record.QuantityOnHand,
		QuantityReserved:  record.QuantityReserved,
		QuantityAvailable: record.QuantityAvailable(),
		Version:           record.Version,
		PiecesPerBox:      record.PiecesPerBox,
		ERPSKU:            record.ERPSKU,
		UpdatedAt:         record.UpdatedAt,
	}
	if record.SqmPerBox.Valid {
		sqm := record.SqmPerBox.Decimal
		resp.SqmPerBox = &sqm
	}
	if area, ok := inventory.UnitsToSquareMeters(record, record.QuantityAvailable()); ok {
		resp.AvailableSqm = &area
	}
	return resp
}

// InventoryGet returns the ledger row for one warehouse when warehouse_id is
// supplied, otherwise every warehouse row for the product.
func InventoryGet(svc InventoryReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if warehouseID := strings.TrimSpace(r.URL.Query().Get("warehouse_id")); warehouseID != "" {
			record, err := svc.Get(r.Context(), productID, warehouseID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, newInventoryRecordResponse(*record))
			return
		}

		records, err := svc.ListByProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]inventoryRecordResponse, 0, len(records))
		for _, record := range records {
			out = append(out, newInventoryRecordResponse(record))
		}
		responses.WriteSuccess(w, out)
	}
}

func productIDParam(r *http.Request) (int64, error) {
	return validators.ParseProductID("product_id", chi.URLParam(r, "productId"))
}
