// Package registry decides where each outbox event is published and how its
// payload decodes.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold/pkg/config"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	"github.com/angelmondragon/stockhold/pkg/outbox"
	"github.com/angelmondragon/stockhold/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a decoded outbox row ready for publishing.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will never publish, however often it is retried.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e *NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) error {
	return &NonRetryableError{Err: err}
}

func nonRetryablef(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// IsNonRetryable reports whether err, or anything it wraps, is a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target *NonRetryableError
	return errors.As(err, &target)
}

type route struct {
	events    []enums.OutboxEventType
	aggregate enums.OutboxAggregateType
	topic     func(config.PubSubConfig) string
	payload   func() any
}

var routes = []route{
	{
		events:    []enums.OutboxEventType{enums.EventReservationCreated},
		aggregate: enums.AggregateReservation,
		topic:     func(c config.PubSubConfig) string { return c.ReservationsTopic },
		payload:   func() any { return &payloads.ReservationCreatedEvent{} },
	},
	{
		events: []enums.OutboxEventType{
			enums.EventReservationReleased,
			enums.EventReservationExpired,
			enums.EventReservationFulfilled,
		},
		aggregate: enums.AggregateReservation,
		topic:     func(c config.PubSubConfig) string { return c.ReservationsTopic },
		payload:   func() any { return &payloads.ReservationClosedEvent{} },
	},
	{
		events:    []enums.OutboxEventType{enums.EventInventoryAdjusted},
		aggregate: enums.AggregateInventoryRecord,
		topic:     func(c config.PubSubConfig) string { return c.InventoryTopic },
		payload:   func() any { return &payloads.InventoryAdjustedEvent{} },
	},
}

// NewEventRegistry binds every known event type to its configured topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.ReservationsTopic == "" {
		return nil, errors.New("reservations topic is required")
	}
	if cfg.InventoryTopic == "" {
		return nil, errors.New("inventory topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, r := range routes {
		for _, eventType := range r.events {
			reg.entries[eventType] = EventDescriptor{
				EventType:      eventType,
				AggregateType:  r.aggregate,
				Topic:          r.topic(cfg),
				PayloadFactory: r.payload,
			}
		}
	}
	return reg, nil
}

// Resolve validates the row and decodes its typed payload. Every failure is
// non-retryable because the stored row cannot change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryablef("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryablef("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryablef("missing aggregate_id")
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, nonRetryablef("%s: %w", event.EventType, err)
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, nonRetryablef("decode %s payload: %w", event.EventType, err)
	}

	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
