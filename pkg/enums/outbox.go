package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateRouting      OutboxAggregateType = "routing"
	AggregateTable        OutboxAggregateType = "table"
	AggregateAnomaly      OutboxAggregateType = "anomaly"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateRouting,
	AggregateTable,
	AggregateAnomaly,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated           OutboxEventType = "order_created"
	EventRoutingCreated         OutboxEventType = "routing_created"
	EventRoutingStarted         OutboxEventType = "routing_started"
	EventRoutingBumped          OutboxEventType = "routing_bumped"
	EventRoutingRecalled        OutboxEventType = "routing_recalled"
	EventRoutingPriorityChanged OutboxEventType = "routing_priority_changed"
	EventRoutingNotesChanged    OutboxEventType = "routing_notes_changed"
	EventTableBumped            OutboxEventType = "table_bumped"
	EventAnomalyRaised          OutboxEventType = "anomaly_raised"
	EventAnomalyResolved        OutboxEventType = "anomaly_resolved"
	EventNotificationRequested  OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventRoutingCreated,
	EventRoutingStarted,
	EventRoutingBumped,
	EventRoutingRecalled,
	EventRoutingPriorityChanged,
	EventRoutingNotesChanged,
	EventTableBumped,
	EventAnomalyRaised,
	EventAnomalyResolved,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
