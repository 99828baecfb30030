// Package events provides domain event handling capabilities for communicating
// state changes and important activities across component boundaries in a
// decoupled way.
package events

import "time"

// EventType represents a domain event category, enabling type-safe event
// routing and handling.
type EventType string

// DomainEvent is implemented by every event the parsing domain emits. It
// carries enough information for subscribers to route and order events.
type DomainEvent interface {
	// EventType returns the category of this event for routing purposes.
	EventType() EventType

	// OccurredAt returns when this event was created, enabling temporal
	// tracking and debugging of event flows.
	OccurredAt() time.Time
}

// PublishOption is a function type that modifies PublishParams. It enables
// flexible configuration of event publishing behavior through functional options.
type PublishOption func(*PublishParams)

// PublishParams contains configuration options for publishing domain events.
type PublishParams struct {
	// Key is used as a routing key to group related events.
	Key string
	// Headers contain metadata key-value pairs attached to the event.
	Headers map[string]string
}

// WithKey returns a PublishOption that sets the routing key for an event.
// The key ensures related events are observed in order by the same consumer.
func WithKey(key string) PublishOption {
	return func(p *PublishParams) { p.Key = key }
}

// WithHeaders returns a PublishOption that attaches metadata headers to an event.
func WithHeaders(headers map[string]string) PublishOption {
	return func(p *PublishParams) { p.Headers = headers }
}
