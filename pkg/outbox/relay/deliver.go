package relay

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	"github.com/angelmondragon/stockhold/pkg/outbox/registry"
)

type fate string

const (
	fatePublished    fate = "published"
	fateRetry        fate = "retry"
	fateDeadLettered fate = "dead_lettered"
	fateHeld         fate = "held"
)

// batch carries the state of one Step. held lists ordering keys whose earlier
// row failed in this batch; later rows of the same aggregate wait for the next
// step so consumers never see them out of order.
type batch struct {
	relay *Relay
	tx    *gorm.DB
	held  map[string]bool
}

func (b *batch) deliver(ctx context.Context, event models.OutboxEvent) (fate, error) {
	r := b.relay
	fields := eventFields(event)

	resolved, err := r.resolver.Resolve(event)
	if err != nil {
		return fateDeadLettered, b.deadLetter(ctx, event, enums.OutboxDLQReasonNonRetryable, err, fields)
	}
	fields["topic"] = resolved.Descriptor.Topic
	fields["event_id"] = resolved.Envelope.EventID

	key := r.orderingKey(event)
	if key != "" && b.held[key] {
		return fateHeld, nil
	}

	pubErr := r.publish(ctx, key, event, resolved)
	if pubErr == nil {
		if err := r.store.MarkPublishedTx(b.tx, event.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		if !event.CreatedAt.IsZero() {
			r.metrics.ObserveLag(r.now().Sub(event.CreatedAt))
		}
		r.logg.Info(r.logg.WithFields(ctx, fields), "outbox event published")
		return fatePublished, nil
	}

	if key != "" {
		b.held[key] = true
	}
	attempt := event.AttemptCount + 1
	fields["attempt_count"] = attempt
	switch {
	case registry.IsNonRetryable(pubErr):
		return fateDeadLettered, b.deadLetter(ctx, event, enums.OutboxDLQReasonNonRetryable, pubErr, fields)
	case attempt >= r.opts.MaxAttempts:
		return fateDeadLettered, b.deadLetter(ctx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", pubErr), fields)
	}

	r.logg.Warn(r.logg.WithFields(ctx, withError(fields, pubErr)), "outbox publish failed")
	if err := r.store.MarkFailedTx(b.tx, event.ID, pubErr); err != nil {
		return "", fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	return fateRetry, nil
}

// deadLetter copies the row into the DLQ and parks it at the attempt ceiling
// so it is never fetched again.
func (b *batch) deadLetter(ctx context.Context, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	r := b.relay
	fields["error_reason"] = reason
	r.logg.Warn(r.logg.WithFields(ctx, withError(fields, cause)), "outbox event dead-lettered")

	message := cause.Error()
	if err := r.dead.InsertTx(b.tx, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      r.now().UTC(),
	}); err != nil {
		return fmt.Errorf("dead-letter %s: %w", event.ID, err)
	}
	if err := r.store.MarkTerminalTx(b.tx, event.ID, cause, r.opts.MaxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (r *Relay) orderingKey(event models.OutboxEvent) string {
	if !r.opts.Ordered || event.AggregateID == uuid.Nil {
		return ""
	}
	return string(event.AggregateType) + ":" + event.AggregateID.String()
}

// publish sends the stored envelope unchanged; routing metadata travels in
// attributes so consumers can filter without decoding.
func (r *Relay) publish(ctx context.Context, key string, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.publishers.get(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("%w %s", errNoPublisher, topic))
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.PublishTimeout)
	defer cancel()
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: key,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_version":  strconv.Itoa(resolved.Envelope.Version),
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("%w %s", errNoPublisher, topic))
	}
	if _, err := result.Get(ctx); err != nil {
		if key != "" {
			pub.Resume(key)
		}
		return err
	}
	return nil
}

func eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func withError(fields map[string]any, err error) map[string]any {
	fields["error"] = err.Error()
	return fields
}
