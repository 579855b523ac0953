package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditflow/auditflow/pkg/channels/gochannel"
	"github.com/auditflow/auditflow/pkg/events"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishSubscribeRoundTrip(t *testing.T) {
	bus := newTestBus(t)
	ctx := t.Context()

	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.SubmissionScoredEvent, func(ctx context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	sent := events.SubmissionScored{
		BaseEvent: events.BaseEvent{
			ID:        "evt-1",
			Type:      events.SubmissionScoredEvent,
			Timestamp: time.Now().UTC(),
			CompanyID: "company-1",
		},
		SubmissionID:      "sub-1",
		AIValidationScore: 7.5,
		Issues:            []string{"signature missing"},
	}
	require.NoError(t, bus.Publish(ctx, "sub-1", sent))

	select {
	case event := <-received:
		scored, ok := event.(*events.SubmissionScored)
		require.True(t, ok)
		assert.Equal(t, "sub-1", scored.SubmissionID)
		assert.InDelta(t, 7.5, scored.AIValidationScore, 0.001)
		assert.Equal(t, "company-1", scored.CompanyID)
		assert.Equal(t, []string{"signature missing"}, scored.Issues)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribed event")
	}
}

func TestWatermillEventBus_UnhandledTypesDoNotBlockTheStream(t *testing.T) {
	bus := newTestBus(t)
	ctx := t.Context()

	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.WorkflowCompletedEvent, func(ctx context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for this type, the consumer acks and moves on.
	require.NoError(t, bus.Publish(ctx, "dw-1", events.WorkflowStarted{
		BaseEvent:          events.BaseEvent{ID: "evt-1", Type: events.WorkflowStartedEvent},
		DocumentWorkflowID: "dw-1",
	}))

	require.NoError(t, bus.Publish(ctx, "dw-1", events.WorkflowCompleted{
		BaseEvent:          events.BaseEvent{ID: "evt-2", Type: events.WorkflowCompletedEvent},
		DocumentWorkflowID: "dw-1",
		PerformedBy:        "user-1",
	}))

	select {
	case event := <-received:
		completed, ok := event.(*events.WorkflowCompleted)
		require.True(t, ok)
		assert.Equal(t, "dw-1", completed.DocumentWorkflowID)
		assert.Equal(t, "user-1", completed.PerformedBy)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribed event")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	assert.NotEmpty(t, bus.GenerateID())
	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
