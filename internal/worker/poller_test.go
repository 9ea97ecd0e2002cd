package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-desk/internal/auth"
	"github.com/spec-kit/ticket-desk/internal/clock"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/service"
)

var tech = domain.Technician{ID: 7, Name: "Test Technician"}

type fakeSessions struct {
	mu       sync.Mutex
	loggedIn bool
}

func (f *fakeSessions) Current(context.Context) (domain.Technician, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loggedIn {
		return domain.Technician{}, auth.ErrNotAuthenticated
	}
	return tech, nil
}

type fakeTickets struct {
	mu        sync.Mutex
	refreshes int
	playing   []int64
	err       error
}

func (f *fakeTickets) Refresh(context.Context, domain.Technician) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.err
}

func (f *fakeTickets) PlayingTickets() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeTickets) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

type fakeTimers struct {
	mu        sync.Mutex
	tracked   []domain.TimerKey
	refreshed []domain.TimerKey
}

func (f *fakeTimers) Track(keys ...domain.TimerKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		dup := false
		for _, t := range f.tracked {
			dup = dup || t == k
		}
		if !dup {
			f.tracked = append(f.tracked, k)
		}
	}
}

func (f *fakeTimers) Tracked() []domain.TimerKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TimerKey(nil), f.tracked...)
}

func (f *fakeTimers) Refresh(_ context.Context, key domain.TimerKey) (service.TimerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, key)
	return service.TimerSnapshot{Key: key}, nil
}

func (f *fakeTimers) refreshedKeys() []domain.TimerKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TimerKey(nil), f.refreshed...)
}

func TestReconcileTracksPlayingTickets(t *testing.T) {
	tickets := &fakeTickets{playing: []int64{4, 9}}
	timers := &fakeTimers{tracked: []domain.TimerKey{{TicketID: 1, UserID: 99}}}
	p := NewPoller(PollerDependencies{Tickets: tickets, Timers: timers, Sessions: &fakeSessions{loggedIn: true}})

	p.ReconcileTimers(context.Background())
	assert.Equal(t, []domain.TimerKey{{TicketID: 4, UserID: 7}, {TicketID: 9, UserID: 7}}, timers.refreshedKeys(),
		"timers of other users are left alone")
}

func TestPollSkippedWhenLoggedOut(t *testing.T) {
	tickets := &fakeTickets{playing: []int64{4}}
	timers := &fakeTimers{}
	p := NewPoller(PollerDependencies{Tickets: tickets, Timers: timers, Sessions: &fakeSessions{}})

	p.RefreshTickets(context.Background())
	p.ReconcileTimers(context.Background())
	assert.Zero(t, tickets.count())
	assert.Empty(t, timers.Tracked())
}

func TestRunTicksIndependently(t *testing.T) {
	fc := clock.Fake(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	tickets := &fakeTickets{playing: []int64{4}, err: errors.New("upstream down")}
	timers := &fakeTimers{}
	p := NewPoller(PollerDependencies{
		Tickets:       tickets,
		Timers:        timers,
		Sessions:      &fakeSessions{loggedIn: true},
		Clock:         fc,
		ListInterval:  time.Minute,
		TimerInterval: 10 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	require.Eventually(t, func() bool { return fc.Pending() == 2 }, time.Second, time.Millisecond)

	fc.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return len(timers.refreshedKeys()) == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, tickets.count())

	fc.Advance(50 * time.Second)
	require.Eventually(t, func() bool { return tickets.count() == 1 }, time.Second, time.Millisecond)

	fc.Advance(time.Minute)
	require.Eventually(t, func() bool { return tickets.count() == 2 }, time.Second, time.Millisecond,
		"a failed refresh is retried on the next tick")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	assert.Zero(t, fc.Pending())
}
