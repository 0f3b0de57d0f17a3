package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_FanOut(t *testing.T) {
	d := NewInMemoryDispatcher()

	var first, second []Event
	d.Subscribe(EventUserCreated, func(_ context.Context, e Event) error {
		first = append(first, e)
		return nil
	})
	d.Subscribe(EventUserCreated, func(_ context.Context, e Event) error {
		second = append(second, e)
		return nil
	})

	event := Event{
		ID:        "evt-1",
		Type:      EventUserCreated,
		UserID:    "user-1",
		ActorID:   "admin-1",
		Timestamp: time.Now(),
	}
	require.NoError(t, d.Publish(context.Background(), event))

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "user-1", first[0].UserID)
	assert.Equal(t, "admin-1", second[0].ActorID)
}

func TestDispatcher_TypeIsolation(t *testing.T) {
	d := NewInMemoryDispatcher()

	var seen int
	d.Subscribe(EventUserDeleted, func(_ context.Context, _ Event) error {
		seen++
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventUserCreated}))
	assert.Zero(t, seen)

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventUserDeleted}))
	assert.Equal(t, 1, seen)
}

func TestDispatcher_HandlerErrorDoesNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var reached bool
	d.Subscribe(EventUserStatusChanged, func(_ context.Context, _ Event) error {
		return errors.New("handler failed")
	})
	d.Subscribe(EventUserStatusChanged, func(_ context.Context, _ Event) error {
		reached = true
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventUserStatusChanged}))
	assert.True(t, reached)
}
