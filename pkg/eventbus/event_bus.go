// Package eventbus provides event-driven communication between the engine,
// its trigger sources and external observers.
package eventbus

import (
	"context"

	"github.com/ferrant/orchid/pkg/events"
)

// Event is anything publishable on the bus. Lifecycle events in pkg/events
// implement it via their BaseEvent embedding.
type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	// Publish sends an event keyed for partition ordering (usually the
	// workflow id).
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	// Handle registers the handler invoked for one event type. Call before
	// Subscribe; later registrations are not picked up.
	Handle(eventType events.EventType, handler EventHandler) error
	// Subscribe starts consuming in the background until ctx is cancelled.
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
