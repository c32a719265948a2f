package cron

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/logger"
)

const (
	defaultSweepBatchSize  = 200
	defaultSweepMaxBatches = 50
)

// SweepState is the expiry job's run state.
type SweepState int32

const (
	SweepIdle SweepState = iota
	SweepSweeping
)

func (s SweepState) String() string {
	if s == SweepSweeping {
		return "sweeping"
	}
	return "idle"
}

// reservationExpirer is the slice of the reservation manager the sweeper uses.
type reservationExpirer interface {
	ListExpired(ctx context.Context, limit int) ([]models.Reservation, error)
	Expire(ctx context.Context, reservation models.Reservation) (bool, error)
}

// ReservationExpiryJobParams configure the expiry sweeper.
type ReservationExpiryJobParams struct {
	Logger     *logger.Logger
	Manager    reservationExpirer
	BatchSize  int
	MaxBatches int
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Scanned int
	Expired int
	Skipped int
	Failed  int
}

// ReservationExpiryJob returns stock held by overdue active reservations.
type ReservationExpiryJob struct {
	logg       *logger.Logger
	manager    reservationExpirer
	batchSize  int
	maxBatches int
	state      atomic.Int32
}

// NewReservationExpiryJob builds the sweeper.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (*ReservationExpiryJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Manager == nil {
		return nil, fmt.Errorf("reservation manager required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	maxBatches := params.MaxBatches
	if maxBatches <= 0 {
		maxBatches = defaultSweepMaxBatches
	}
	return &ReservationExpiryJob{
		logg:       params.Logger,
		manager:    params.Manager,
		batchSize:  batch,
		maxBatches: maxBatches,
	}, nil
}

func (j *ReservationExpiryJob) Name() string { return "reservation-expiry" }

// State reports whether a sweep is in progress.
func (j *ReservationExpiryJob) State() SweepState {
	return SweepState(j.state.Load())
}

func (j *ReservationExpiryJob) Run(ctx context.Context) error {
	_, err := j.Sweep(ctx)
	return err
}

// Sweep expires overdue reservations batch by batch. Each reservation is
// handled on its own; a failure is collected and the sweep moves on. A call
// made while a sweep is already running returns immediately.
func (j *ReservationExpiryJob) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	if !j.state.CompareAndSwap(int32(SweepIdle), int32(SweepSweeping)) {
		j.logg.Debug(ctx, "reservation sweep already running")
		return report, nil
	}
	defer j.state.Store(int32(SweepIdle))

	var errs error
	for batch := 0; batch < j.maxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		rows, err := j.manager.ListExpired(ctx, j.batchSize)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("list expired reservations: %w", err))
			break
		}
		if len(rows) == 0 {
			break
		}

		progressed := 0
		for _, reservation := range rows {
			report.Scanned++
			moved, err := j.manager.Expire(ctx, reservation)
			if err != nil {
				report.Failed++
				errs = multierr.Append(errs, fmt.Errorf("expire reservation %s: %w", reservation.ID, err))
				continue
			}
			progressed++
			if moved {
				report.Expired++
			} else {
				report.Skipped++
			}
		}
		// A short batch drained the backlog; a batch where nothing progressed
		// would only be listed again.
		if len(rows) < j.batchSize || progressed == 0 {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": report.Scanned,
		"expired": report.Expired,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	})
	if report.Scanned > 0 {
		j.logg.Info(logCtx, "reservation sweep complete")
	}
	return report, errs
}
