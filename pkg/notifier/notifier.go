// Package notifier delivers fire-and-forget notifications for lifecycle
// events. Delivery failures are logged and never fail the triggering
// operation.
package notifier

import (
	"context"
	"log/slog"

	"github.com/auditflow/auditflow/pkg/eventbus"
)

// Notifier announces lifecycle events to interested parties.
type Notifier interface {
	Notify(ctx context.Context, key string, event eventbus.Event)
}

// EventBusNotifier publishes notifications on the event bus.
type EventBusNotifier struct {
	bus    eventbus.EventPublisher
	logger *slog.Logger
}

// NewEventBusNotifier creates a notifier backed by the event bus.
func NewEventBusNotifier(bus eventbus.EventPublisher, logger *slog.Logger) *EventBusNotifier {
	return &EventBusNotifier{
		bus:    bus,
		logger: logger.With("module", "notifier"),
	}
}

// Notify publishes the event, logging and swallowing any failure.
func (n *EventBusNotifier) Notify(ctx context.Context, key string, event eventbus.Event) {
	err := n.bus.Publish(ctx, key, event)
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to publish notification",
			"event_type", event.GetType(), "key", key, "error", err)
	}
}

// LogNotifier writes notifications to the log only. It serves tests and
// deployments without a broker.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notifier")}
}

// Notify logs the event.
func (n *LogNotifier) Notify(ctx context.Context, key string, event eventbus.Event) {
	n.logger.InfoContext(ctx, "notification", "event_type", event.GetType(), "key", key)
}
