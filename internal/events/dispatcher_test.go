package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRunsEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []string
	boom := errors.New("boom")

	d.Subscribe(EventTimerStarted, func(_ context.Context, e Event) error {
		seen = append(seen, "first")
		return boom
	})
	d.Subscribe(EventTimerStarted, func(_ context.Context, e Event) error {
		seen = append(seen, "second")
		return nil
	})
	d.Subscribe(EventTimerStopped, func(_ context.Context, e Event) error {
		seen = append(seen, "other")
		return nil
	})

	err := d.Publish(context.Background(), New(EventTimerStarted, 5, 7, time.Now(), nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second"}, seen)
}

func TestPublishWithoutListeners(t *testing.T) {
	d := NewInMemoryDispatcher()
	require.NoError(t, d.Publish(context.Background(), New(EventTicketsRefreshed, 0, 7, time.Now(), nil)))
}

func TestNewStampsID(t *testing.T) {
	a := New(EventTimerPaused, 1, 2, time.Now(), TimerPayload{})
	b := New(EventTimerPaused, 1, 2, time.Now(), TimerPayload{})
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, int64(1), a.TicketID)
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []EventType
	d.Subscribe(EventTimerSynced, func(context.Context, Event) error {
		panic("feed is broken")
	})
	d.SubscribeAll(TimerEventTypes, func(_ context.Context, e Event) error {
		got = append(got, e.Type)
		return nil
	})

	err := d.Publish(context.Background(), New(EventTimerSynced, 5, 7, time.Now(), TimerPayload{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed is broken")
	require.NoError(t, d.Publish(context.Background(), New(EventTimerPaused, 5, 7, time.Now(), TimerPayload{})))
	assert.Equal(t, []EventType{EventTimerSynced, EventTimerPaused}, got)
}
