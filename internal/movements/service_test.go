package movements

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	"github.com/angelmondragon/stockhold/pkg/pagination"
)

type fakeRepository struct {
	appendFn func(ctx context.Context, entry *models.MovementLogEntry) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Append(ctx context.Context, entry *models.MovementLogEntry) error {
	if f.appendFn != nil {
		return f.appendFn(ctx, entry)
	}
	return nil
}

func (f *fakeRepository) List(ctx context.Context, filter Filter, limit int, cursor *pagination.Cursor) ([]models.MovementLogEntry, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (f *fakeRepository) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.MovementLogEntry, error) {
	return nil, nil
}

func TestService_Record(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	var created *models.MovementLogEntry
	repo.appendFn = func(ctx context.Context, entry *models.MovementLogEntry) error {
		created = entry
		return nil
	}

	reservationID := uuid.New()
	got, err := svc.Record(context.Background(), RecordInput{
		Type:            enums.MovementTypeReservation,
		ProductID:       42,
		FromWarehouseID: WarehouseRef("main"),
		Quantity:        -7,
		ReservationID:   &reservationID,
		PerformedBy:     "user-1",
		Reason:          ReasonReserved,
		Metadata:        map[string]any{"cart_session_id": "cart-9"},
	})
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if created == nil || got != created {
		t.Fatal("service should return the appended entry")
	}
	if created.Status != enums.MovementStatusCompleted {
		t.Fatalf("expected default completed status, got %s", created.Status)
	}
	if created.Quantity != -7 || *created.FromWarehouseID != "main" || created.ToWarehouseID != nil {
		t.Fatalf("unexpected entry data: %+v", created)
	}
	var meta map[string]string
	if err := json.Unmarshal(created.Metadata, &meta); err != nil || meta["cart_session_id"] != "cart-9" {
		t.Fatalf("metadata mismatch: %s", created.Metadata)
	}
}

func TestService_RecordValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	valid := RecordInput{
		Type:        enums.MovementTypeRelease,
		ProductID:   1,
		Quantity:    3,
		PerformedBy: "system",
		Reason:      ReasonExpired,
	}

	tests := []struct {
		name   string
		mutate func(in *RecordInput)
	}{
		{name: "invalid type", mutate: func(in *RecordInput) { in.Type = enums.MovementType("teleport") }},
		{name: "release with negative quantity", mutate: func(in *RecordInput) { in.Quantity = -3 }},
		{name: "reservation with positive quantity", mutate: func(in *RecordInput) { in.Type = enums.MovementTypeReservation }},
		{name: "zero adjustment", mutate: func(in *RecordInput) { in.Type = enums.MovementTypeAdjustment; in.Quantity = 0 }},
		{name: "missing product", mutate: func(in *RecordInput) { in.ProductID = 0 }},
		{name: "missing actor", mutate: func(in *RecordInput) { in.PerformedBy = " " }},
		{name: "missing reason", mutate: func(in *RecordInput) { in.Reason = "" }},
		{name: "invalid status", mutate: func(in *RecordInput) { in.Status = enums.MovementStatus("maybe") }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := valid
			tc.mutate(&input)
			if _, err := svc.Record(context.Background(), input); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestService_RecordRepoError(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	expectedErr := errors.New("boom")
	repo.appendFn = func(ctx context.Context, entry *models.MovementLogEntry) error {
		return expectedErr
	}

	if _, err := svc.Record(context.Background(), RecordInput{
		Type:        enums.MovementTypeAdjustment,
		ProductID:   1,
		Quantity:    -2,
		PerformedBy: "admin-1",
		Reason:      "damaged",
	}); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}

func TestService_ListRejectsBadCursor(t *testing.T) {
	svc, _ := NewService(&fakeRepository{})
	if _, err := svc.List(context.Background(), Filter{}, pagination.Params{Cursor: "%%%"}); err == nil {
		t.Fatal("expected cursor error")
	}
}

func TestNewServiceRequiresRepository(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected error for nil repository")
	}
}
