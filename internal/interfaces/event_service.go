package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventRunUploaded          EventType = "run_uploaded"
	EventRunDeleted           EventType = "run_deleted"
	EventAttributesReconciled EventType = "attributes_reconciled"
	EventAttributesSaved      EventType = "attributes_saved"
	EventLookupFileChanged    EventType = "lookup_file_changed"
)

// AllEventTypes lists every event the service publishes
var AllEventTypes = []EventType{
	EventRunUploaded,
	EventRunDeleted,
	EventAttributesReconciled,
	EventAttributesSaved,
	EventLookupFileChanged,
}

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
