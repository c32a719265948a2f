package cron

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/stockhold/internal/inventory"
	"github.com/angelmondragon/stockhold/internal/movements"
	"github.com/angelmondragon/stockhold/internal/reservations"
	"github.com/angelmondragon/stockhold/internal/warehouses"
	dbpkg "github.com/angelmondragon/stockhold/pkg/db"
	"github.com/angelmondragon/stockhold/pkg/db/dbtest"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/outbox"
)

type fakeExpirer struct {
	mu       sync.Mutex
	pending  []models.Reservation
	failIDs  map[uuid.UUID]bool
	expired  []uuid.UUID
	listErr  error
	block    chan struct{}
	listings int
}

func (f *fakeExpirer) ListExpired(_ context.Context, limit int) ([]models.Reservation, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	out := make([]models.Reservation, limit)
	copy(out, f.pending[:limit])
	return out, nil
}

func (f *fakeExpirer) Expire(_ context.Context, reservation models.Reservation) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[reservation.ID] {
		return false, errors.New("db timeout")
	}
	// Clone first: pending may share its backing array with the test's rows.
	f.pending = slices.DeleteFunc(slices.Clone(f.pending), func(row models.Reservation) bool {
		return row.ID == reservation.ID
	})
	f.expired = append(f.expired, reservation.ID)
	return true, nil
}

func pendingReservations(n int) []models.Reservation {
	rows := make([]models.Reservation, n)
	for i := range rows {
		rows[i] = models.Reservation{ID: uuid.New(), Status: enums.ReservationStatusActive}
	}
	return rows
}

func newExpiryJob(t *testing.T, manager reservationExpirer, batch int) *ReservationExpiryJob {
	t.Helper()
	job, err := NewReservationExpiryJob(ReservationExpiryJobParams{
		Logger:    logger.Nop(),
		Manager:   manager,
		BatchSize: batch,
	})
	if err != nil {
		t.Fatalf("NewReservationExpiryJob: %v", err)
	}
	return job
}

func TestExpiryJobDrainsInBatches(t *testing.T) {
	fake := &fakeExpirer{pending: pendingReservations(5)}
	job := newExpiryJob(t, fake, 2)

	report, err := job.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.Expired != 5 || report.Scanned != 5 || len(fake.pending) != 0 {
		t.Fatalf("unexpected report %+v, pending %d", report, len(fake.pending))
	}
	if fake.listings != 3 {
		t.Fatalf("expected 3 batches (2+2+1), got %d", fake.listings)
	}
	if job.State() != SweepIdle {
		t.Fatalf("expected idle after sweep")
	}
}

func TestExpiryJobContinuesPastFailures(t *testing.T) {
	rows := pendingReservations(3)
	fake := &fakeExpirer{pending: rows, failIDs: map[uuid.UUID]bool{rows[1].ID: true}}
	job := newExpiryJob(t, fake, 10)

	report, err := job.Sweep(context.Background())
	if err == nil {
		t.Fatal("expected collected error")
	}
	if len(multierr.Errors(err)) != 1 || !strings.Contains(err.Error(), rows[1].ID.String()) {
		t.Fatalf("expected one error naming the failed reservation, got %v", err)
	}
	if report.Expired != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if rows[1].ID != fake.pending[0].ID {
		t.Fatalf("the failed reservation should stay pending, got %+v", fake.pending)
	}
}

func TestExpiryJobStopsWhenNothingProgresses(t *testing.T) {
	rows := pendingReservations(2)
	fake := &fakeExpirer{pending: rows, failIDs: map[uuid.UUID]bool{rows[0].ID: true, rows[1].ID: true}}
	job := newExpiryJob(t, fake, 2)

	if _, err := job.Sweep(context.Background()); err == nil {
		t.Fatal("expected errors")
	}
	if fake.listings != 1 {
		t.Fatalf("a batch with no progress must end the sweep, got %d listings", fake.listings)
	}
}

func TestExpiryJobListErrorIsReturned(t *testing.T) {
	job := newExpiryJob(t, &fakeExpirer{listErr: errors.New("conn reset")}, 10)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected list error")
	}
}

func TestExpiryJobSkipsWhileSweeping(t *testing.T) {
	fake := &fakeExpirer{pending: pendingReservations(1), block: make(chan struct{})}
	job := newExpiryJob(t, fake, 10)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = job.Sweep(context.Background())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for job.State() != SweepSweeping {
		if time.Now().After(deadline) {
			t.Fatal("first sweep never started")
		}
		time.Sleep(time.Millisecond)
	}

	report, err := job.Sweep(context.Background())
	if err != nil || report.Scanned != 0 {
		t.Fatalf("overlapping sweep must return immediately, got %+v %v", report, err)
	}

	close(fake.block)
	<-done
	if len(fake.expired) != 1 {
		t.Fatalf("first sweep should finish its work, expired %d", len(fake.expired))
	}
}

func TestExpiryJobAgainstLedgerIsIdempotent(t *testing.T) {
	db := dbtest.Open(t, "cron_expiry_ledger")
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	if err := db.Create(&models.Warehouse{ID: "main", Code: "MAIN", Name: "Main", IsDefault: true, IsActive: true}).Error; err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	if err := db.Create(&models.InventoryRecord{ProductID: 1, WarehouseID: "main", QuantityOnHand: 10}).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}

	records := inventory.NewRepository(db)
	ledger, _ := inventory.NewService(inventory.ServiceParams{Repo: records})
	moves, _ := movements.NewService(movements.NewRepository(db))
	resolver, _ := warehouses.NewResolver(warehouses.NewRepository(db), "")
	manager, err := reservations.NewManager(reservations.ManagerParams{
		DB:         dbpkg.FromConn(db),
		Repo:       reservations.NewRepository(db),
		Ledger:     ledger,
		Records:    records,
		Warehouses: resolver,
		Movements:  moves,
		Outbox:     outbox.NewService(outbox.NewRepository(db), nil),
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	ctx := context.Background()
	if _, err := manager.Reserve(ctx, reservations.ReserveInput{
		Items:           []reservations.ItemInput{{ProductID: 1, Quantity: 3}, {ProductID: 1, Quantity: 4}},
		UserID:          "user-1",
		DurationMinutes: 10,
	}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	now = now.Add(11 * time.Minute)
	job := newExpiryJob(t, manager, 1)
	report, err := job.Sweep(ctx)
	if err != nil || report.Expired != 2 {
		t.Fatalf("first sweep: %+v %v", report, err)
	}
	report, err = job.Sweep(ctx)
	if err != nil || report.Scanned != 0 {
		t.Fatalf("second sweep must find nothing: %+v %v", report, err)
	}

	var record models.InventoryRecord
	if err := db.Where("product_id = ?", 1).First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.QuantityReserved != 0 || record.Version != 4 {
		t.Fatalf("expected two reserves and two releases, got %+v", record)
	}
	var releases int64
	if err := db.Model(&models.MovementLogEntry{}).
		Where("movement_type = ? AND reason = ?", enums.MovementTypeRelease, movements.ReasonExpired).
		Count(&releases).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if releases != 2 {
		t.Fatalf("expected two expiry movements, got %d", releases)
	}
}
