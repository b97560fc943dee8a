package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateSubscription OutboxAggregateType = "subscription"
	AggregateOutboxEvent  OutboxAggregateType = "outbox_event"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateSubscription,
	AggregateOutboxEvent,
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
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderCancelled        OutboxEventType = "order_cancelled"
	EventOrderDelivered        OutboxEventType = "order_delivered"
	EventPlanChanged           OutboxEventType = "plan_changed"
	EventSubscriptionPaused    OutboxEventType = "subscription_paused"
	EventSubscriptionResumed   OutboxEventType = "subscription_resumed"
	EventSubscriptionCancelled OutboxEventType = "subscription_cancelled"
	EventBillingPeriodRolled   OutboxEventType = "billing_period_rolled"
	EventProrationCharged      OutboxEventType = "proration_charged"
	EventProrationCredited     OutboxEventType = "proration_credited"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderCancelled,
	EventOrderDelivered,
	EventPlanChanged,
	EventSubscriptionPaused,
	EventSubscriptionResumed,
	EventSubscriptionCancelled,
	EventBillingPeriodRolled,
	EventProrationCharged,
	EventProrationCredited,
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
