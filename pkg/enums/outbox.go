package enums

// OutboxAggregateType names the entity an outbox event is about; it is also
// the ordering key prefix on publish.
type OutboxAggregateType string

const (
	AggregateReservation     OutboxAggregateType = "reservation"
	AggregateInventoryRecord OutboxAggregateType = "inventory_record"
)

var aggregateTypes = newSet("aggregate type", AggregateReservation, AggregateInventoryRecord)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(value)
}

type OutboxEventType string

const (
	EventReservationCreated   OutboxEventType = "reservation_created"
	EventReservationReleased  OutboxEventType = "reservation_released"
	EventReservationExpired   OutboxEventType = "reservation_expired"
	EventReservationFulfilled OutboxEventType = "reservation_fulfilled"
	EventInventoryAdjusted    OutboxEventType = "inventory_adjusted"
)

var eventTypes = newSet("event type",
	EventReservationCreated,
	EventReservationReleased,
	EventReservationExpired,
	EventReservationFulfilled,
	EventInventoryAdjusted,
)

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return eventTypes.parse(value)
}

// OutboxDLQErrorReason says why the publisher gave up on an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = newSet("dead letter reason", OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable)

func (r OutboxDLQErrorReason) IsValid() bool { return dlqReasons.has(r) }
