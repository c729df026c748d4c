package events

import "context"

// EventBus defines the interface for event publishing and subscription
type EventBus interface {
	// Publish publishes an event to the bus
	Publish(ctx context.Context, event Event) error

	// Subscribe creates a subscription to events matching a pattern
	Subscribe(ctx context.Context, pattern string, consumerName string, handler Handler) error

	// Close closes the event bus connection
	Close()

	// Health checks the event bus connection
	Health() error
}

// Ensure Bus implements EventBus
var _ EventBus = (*Bus)(nil)

// NopBus is a no-op bus used when the event store is unavailable.
// The workflow treats event publishing as best-effort, so the service
// stays up without it.
type NopBus struct{}

func (NopBus) Publish(ctx context.Context, event Event) error { return nil }

func (NopBus) Subscribe(ctx context.Context, pattern string, consumerName string, handler Handler) error {
	return nil
}

func (NopBus) Close() {}

func (NopBus) Health() error { return nil }

var _ EventBus = NopBus{}
