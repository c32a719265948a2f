// Package relay moves committed outbox rows to Pub/Sub. Each step locks a
// batch, publishes it, and records every row's fate in the same transaction:
// published, retried later, held behind a failed row of its aggregate, or
// dead-lettered.
package relay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/pkg/config"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/metrics"
	"github.com/angelmondragon/stockhold/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	maxBackoff            = 10 * time.Second
	jitterPercent         = 20
)

type TxRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type Store interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type DeadLetters interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type Resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type Options struct {
	BatchSize      int
	MaxAttempts    int
	PollInterval   time.Duration
	PublishTimeout time.Duration
	// Ordered publishes each aggregate on its own ordering key.
	Ordered bool
}

func OptionsFromConfig(cfg config.OutboxConfig) Options {
	return Options{
		BatchSize:    cfg.BatchSize,
		MaxAttempts:  cfg.MaxAttempts,
		PollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		Ordered:      cfg.Ordered,
	}
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = defaultPublishTimeout
	}
	return o
}

type Params struct {
	Options     Options
	Logger      *logger.Logger
	DB          TxRunner
	Store       Store
	DeadLetters DeadLetters
	Resolver    Resolver
	Publishers  Source
	// Pingers are checked once before the first step.
	Pingers map[string]func(context.Context) error
	Metrics *metrics.OutboxMetrics
	Clock   func() time.Time
}

type Relay struct {
	opts       Options
	logg       *logger.Logger
	db         TxRunner
	store      Store
	dead       DeadLetters
	resolver   Resolver
	publishers *publisherCache
	pingers    map[string]func(context.Context) error
	metrics    *metrics.OutboxMetrics
	now        func() time.Time
}

func New(p Params) (*Relay, error) {
	var missing []string
	for name, ok := range map[string]bool{
		"logger":       p.Logger != nil,
		"db":           p.DB != nil,
		"store":        p.Store != nil,
		"dead letters": p.DeadLetters != nil,
		"resolver":     p.Resolver != nil,
		"publishers":   p.Publishers != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("relay: missing %s", strings.Join(missing, ", "))
	}
	opts := p.Options.withDefaults()
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	return &Relay{
		opts:       opts,
		logg:       p.Logger,
		db:         p.DB,
		store:      p.Store,
		dead:       p.DeadLetters,
		resolver:   p.Resolver,
		publishers: newPublisherCache(p.Publishers, opts.Ordered),
		pingers:    p.Pingers,
		metrics:    p.Metrics,
		now:        now,
	}, nil
}

// Stats counts what one step did with the rows it fetched.
type Stats struct {
	Published    int
	Retried      int
	DeadLettered int
	Held         int
}

func (s Stats) Total() int { return s.Published + s.Retried + s.DeadLettered + s.Held }

// Run steps until ctx is done. Idle polls wait about one poll interval;
// failed steps back off exponentially up to maxBackoff.
func (r *Relay) Run(ctx context.Context) error {
	defer r.publishers.close()
	if err := r.ping(ctx); err != nil {
		return err
	}

	idle := retry.WithJitterPercent(jitterPercent, retry.NewConstant(r.opts.PollInterval))
	failing := r.failureBackoff()
	for {
		stats, err := r.Step(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return ctxErr
		}

		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay step failed", err)
			wait, _ = failing.Next()
		case stats.Total() > 0:
			failing = r.failureBackoff()
			continue
		default:
			failing = r.failureBackoff()
			wait, _ = idle.Next()
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *Relay) failureBackoff() retry.Backoff {
	return retry.WithJitterPercent(jitterPercent,
		retry.WithCappedDuration(maxBackoff, retry.NewExponential(2*r.opts.PollInterval)))
}

func (r *Relay) ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	for name, ping := range r.pingers {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping: %w", name, err)
		}
	}
	return nil
}

// Step relays one locked batch in a single transaction. Only storage errors
// fail the step; publish failures are recorded on their rows.
func (r *Relay) Step(ctx context.Context) (Stats, error) {
	started := r.now()
	var stats Stats
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		stats = Stats{}
		events, err := r.store.FetchUnpublishedForPublish(tx, r.opts.BatchSize, r.opts.MaxAttempts)
		if err != nil {
			return err
		}
		b := &batch{relay: r, tx: tx, held: map[string]bool{}}
		for _, event := range events {
			fate, err := b.deliver(ctx, event)
			if err != nil {
				return err
			}
			stats.add(fate)
			r.metrics.IncEvent(string(event.EventType), string(fate))
		}
		return nil
	})
	if stats.Total() > 0 {
		r.metrics.ObserveBatch(r.now().Sub(started))
		r.logg.Debug(r.logg.WithFields(ctx, map[string]any{
			"published":     stats.Published,
			"retried":       stats.Retried,
			"dead_lettered": stats.DeadLettered,
			"held":          stats.Held,
		}), "outbox batch relayed")
	}
	return stats, err
}

func (s *Stats) add(f fate) {
	switch f {
	case fatePublished:
		s.Published++
	case fateRetry:
		s.Retried++
	case fateDeadLettered:
		s.DeadLettered++
	case fateHeld:
		s.Held++
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var errNoPublisher = errors.New("no publisher for topic")
