// Package eventbus provides event-driven communication infrastructure for
// lifecycle notifications.
package eventbus

import (
	"context"

	"github.com/auditflow/auditflow/pkg/events"
)

// Event is anything the bus can carry; every lifecycle event in pkg/events
// satisfies it.
type Event interface {
	GetType() events.EventType
}

// EventPublisher emits events keyed by the entity they concern.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber dispatches incoming events to registered handlers. Handle
// registers a handler per event type; Subscribe starts consuming. Events
// with no registered handler are acknowledged and dropped.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler processes one decoded event.
type EventHandler func(ctx context.Context, event interface{}) error

// EventBus is the full publish and consume surface shared by the binaries.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
