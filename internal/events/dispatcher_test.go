package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []Event
	d.Subscribe(EventUserBlocked, func(_ context.Context, e Event) error {
		seen = append(seen, e)
		return errors.New("first failed")
	})
	d.Subscribe(EventUserBlocked, func(_ context.Context, e Event) error {
		seen = append(seen, e)
		return nil
	})
	d.Subscribe(EventUserLoggedIn, func(_ context.Context, e Event) error {
		t.Fatal("wrong type dispatched")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventUserBlocked, SubjectID: "U1"})
	require.Error(t, err)
	require.Len(t, seen, 2)
	assert.NotEmpty(t, seen[0].ID)
	assert.False(t, seen[0].Timestamp.IsZero())
	assert.Equal(t, seen[0].ID, seen[1].ID)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTokenRevoked}))
}
