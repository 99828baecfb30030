// Package memory provides an in-process implementation of the event bus. It
// offers lightweight, non-persistent publish/subscribe suitable for a single
// client process where durability is not required.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/telescan/telescan/internal/domain/events"
	"github.com/telescan/telescan/pkg/common/logger"
)

// subscription is one registered handler. The id makes removal on context
// cancellation safe while other subscriptions come and go.
type subscription struct {
	id      uint64
	handler events.HandlerFunc
}

// Broker is an in-process implementation of events.EventBus. Handlers are
// invoked synchronously, in registration order, on the publisher's
// goroutine; publishing stops at the first handler error.
type Broker struct {
	logger *logger.Logger

	mu       sync.RWMutex
	nextID   uint64
	handlers map[events.EventType][]subscription
	closed   bool
}

var _ events.EventBus = (*Broker)(nil)

// NewBroker creates an empty in-process event bus.
func NewBroker(logger *logger.Logger) *Broker {
	return &Broker{
		logger:   logger.With("component", "memory_event_bus"),
		handlers: make(map[events.EventType][]subscription),
	}
}

// PublishDomainEvent delivers the event to every handler subscribed to its
// type. Publish options are accepted for interface compatibility; ordering
// keys carry no meaning in-process.
func (b *Broker) PublishDomainEvent(ctx context.Context, event events.DomainEvent, opts ...events.PublishOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.New("event bus is closed")
	}
	// Copy so handlers never run under the lock.
	subs := append([]subscription(nil), b.handlers[event.EventType()]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sub.handler(ctx, event); err != nil {
			return fmt.Errorf("handler failed for %s: %w", event.EventType(), err)
		}
	}
	return nil
}

// Subscribe registers the handler for every listed event type. The
// subscription lasts until the context is cancelled or the bus is closed.
func (b *Broker) Subscribe(ctx context.Context, eventTypes []events.EventType, handler events.HandlerFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("event bus is closed")
	}
	b.nextID++
	id := b.nextID
	for _, et := range eventTypes {
		b.handlers[et] = append(b.handlers[et], subscription{id: id, handler: handler})
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(id, eventTypes)
	}()

	return nil
}

// Close drops all subscriptions and rejects further publishes.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[events.EventType][]subscription)
	return nil
}

func (b *Broker) remove(id uint64, eventTypes []events.EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, et := range eventTypes {
		subs := b.handlers[et]
		for i, sub := range subs {
			if sub.id == id {
				b.handlers[et] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}
