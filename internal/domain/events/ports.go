package events

import "context"

// HandlerFunc processes a single domain event. Returning an error signals the
// bus that handling failed; the bus decides whether that is fatal.
type HandlerFunc func(ctx context.Context, evt DomainEvent) error

// DomainEventPublisher publishes domain events to notify other parts of the
// system about important domain changes. It provides a technology-agnostic
// interface to decouple event producers from the underlying delivery
// mechanism.
type DomainEventPublisher interface {
	// PublishDomainEvent sends a domain event to interested subscribers.
	// Optional PublishOptions configure routing behavior.
	PublishDomainEvent(ctx context.Context, event DomainEvent, opts ...PublishOption) error
}

// EventBus enables publishing and subscribing to domain events across
// component boundaries while keeping producers and consumers decoupled.
type EventBus interface {
	DomainEventPublisher

	// Subscribe registers a handler for the specified event types. The
	// subscription is released when ctx is canceled.
	Subscribe(ctx context.Context, eventTypes []EventType, handler HandlerFunc) error

	// Close gracefully shuts down the event bus and releases associated resources.
	Close() error
}
