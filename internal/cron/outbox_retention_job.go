package cron

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/pkg/logger"
)

const defaultOutboxRetention = 7 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPruner
	Retention  time.Duration
}

// NewOutboxRetentionJob deletes outbox rows published more than Retention
// ago. Unpublished rows are left for the publisher however old they are.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	job, err := newPruneJob("outbox-retention", params.Logger, params.DB, params.Retention, params.Repository.DeletePublishedBefore)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// pruneJob deletes rows older than a rolling cutoff in one transaction.
type pruneJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	retention time.Duration
	prune     func(tx *gorm.DB, cutoff time.Time) (int64, error)
	now       func() time.Time
}

func newPruneJob(name string, logg *logger.Logger, db txRunner, retention time.Duration, prune func(*gorm.DB, time.Time) (int64, error)) (*pruneJob, error) {
	switch {
	case logg == nil:
		return nil, errors.New("logger required")
	case db == nil:
		return nil, errors.New("db runner required")
	}
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return &pruneJob{name: name, logg: logg, db: db, retention: retention, prune: prune, now: time.Now}, nil
}

func (j *pruneJob) Name() string { return j.name }

func (j *pruneJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		deleted, err = j.prune(tx, cutoff)
		return err
	})
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"cutoff":       cutoff,
			"rows_deleted": deleted,
		}), "rows pruned")
	}
	return nil
}
