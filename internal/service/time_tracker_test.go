package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-desk/internal/clock"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/events"
	"github.com/spec-kit/ticket-desk/internal/ticketbase"
	"github.com/spec-kit/ticket-desk/internal/ticketbase/ticketbasetest"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

var timerKey = domain.TimerKey{TicketID: 5, UserID: 7}

type trackerFixture struct {
	tracker *TimeTracker
	fake    *ticketbasetest.Server
	clock   *clock.FakeClock
	events  *[]events.EventType
}

func newTrackerFixture(t *testing.T, remote func(*ticketbase.Client) TimerRemote) trackerFixture {
	t.Helper()
	fake := ticketbasetest.New(t)
	fc := clock.Fake(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	dispatcher := events.NewInMemoryDispatcher()
	seen := &[]events.EventType{}
	dispatcher.SubscribeAll(events.TimerEventTypes, func(_ context.Context, e events.Event) error {
		*seen = append(*seen, e.Type)
		return nil
	})
	var r TimerRemote = fake.Client()
	if remote != nil {
		r = remote(fake.Client())
	}
	tracker := NewTimeTracker(TimeTrackerDependencies{
		Remote:     r,
		Dispatcher: dispatcher,
		Clock:      fc,
	})
	return trackerFixture{tracker: tracker, fake: fake, clock: fc, events: seen}
}

func endpoints(calls []ticketbasetest.Call) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Path)
	}
	return out
}

func TestTimerLifecycle(t *testing.T) {
	f := newTrackerFixture(t, nil)
	ctx := context.Background()

	snap, err := f.tracker.Start(ctx, timerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerPlaying, snap.Status)
	assert.Equal(t, "00:00:00", snap.Display)

	f.clock.Advance(10 * time.Minute)
	snap, err = f.tracker.Pause(ctx, timerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerPaused, snap.Status)
	assert.Equal(t, 10*time.Minute, snap.Elapsed)

	f.clock.Advance(5 * time.Minute)
	assert.Equal(t, "00:10:00", f.tracker.Snapshot(timerKey).Display, "paused timer is frozen")

	snap, err = f.tracker.Resume(ctx, timerKey)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, snap.Elapsed, "resume continues from the frozen value")
	f.clock.Advance(time.Second)
	assert.Equal(t, "00:10:01", f.tracker.Snapshot(timerKey).Display)

	snap, err = f.tracker.Finish(ctx, timerKey, FinishInput{Description: "fixed", StatusID: 3})
	require.NoError(t, err)
	assert.Equal(t, domain.TimerStopped, snap.Status)
	assert.Equal(t, 10, snap.Minutes)

	play := f.fake.Calls("play")
	require.Len(t, play, 1)
	assert.Equal(t, float64(domain.ActionStop), play[0].Body["current_state"], "a fresh timer starts from STOP")
	pause := f.fake.Calls("pause")
	require.Len(t, pause, 1)
	assert.Equal(t, float64(domain.ActionPlay), pause[0].Body["current_state"])
	resume := f.fake.Calls("resume")
	require.Len(t, resume, 1)
	assert.Equal(t, float64(domain.ActionPause), resume[0].Body["current_state"])
	stop := f.fake.Calls("stop")
	require.Len(t, stop, 1)
	assert.Equal(t, float64(domain.ActionResume), stop[0].Body["current_state"])

	assert.Equal(t, []events.EventType{
		events.EventTimerStarted,
		events.EventTimerPaused,
		events.EventTimerResumed,
		events.EventTimerStopped,
	}, *f.events)

	_, err = f.tracker.Start(ctx, timerKey)
	require.NoError(t, err)
	play = f.fake.Calls("play")
	require.Len(t, play, 2)
	assert.Equal(t, float64(domain.ActionStop), play[1].Body["current_state"])
}

func TestInvalidTransitionsDoNotCallRemote(t *testing.T) {
	f := newTrackerFixture(t, nil)
	ctx := context.Background()

	_, err := f.tracker.Pause(ctx, timerKey)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.tracker.Resume(ctx, timerKey)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.tracker.Finish(ctx, timerKey, FinishInput{Description: "x", StatusID: 1})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.tracker.Start(ctx, timerKey)
	require.NoError(t, err)
	_, err = f.tracker.Start(ctx, timerKey)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.tracker.Resume(ctx, timerKey)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, []string{"/play"}, endpoints(f.fake.Calls("")))
}

func TestStartConflictReconciles(t *testing.T) {
	f := newTrackerFixture(t, nil)
	f.fake.RespondExists("play")
	f.fake.SetPlayer(timerKey.TicketID, timerKey.UserID, "1", 5)

	snap, err := f.tracker.Start(context.Background(), timerKey)
	assert.ErrorIs(t, err, ErrTimerConflict)
	assert.Equal(t, domain.TimerPlaying, snap.Status)
	assert.Equal(t, 5*time.Minute, snap.Elapsed)
	assert.Equal(t, []events.EventType{events.EventTimerSynced}, *f.events)
}

func TestStartFailureKeepsState(t *testing.T) {
	f := newTrackerFixture(t, nil)
	f.fake.RespondError("play", "ticket closed")

	snap, err := f.tracker.Start(context.Background(), timerKey)
	var apiErr *ticketbase.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, domain.TimerStopped, snap.Status)
	assert.Empty(t, *f.events)
}

func TestFinishSendsCorrectionBeforeHistory(t *testing.T) {
	f := newTrackerFixture(t, nil)
	ctx := context.Background()
	_, err := f.tracker.Start(ctx, timerKey)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)

	corrected := 15
	snap, err := f.tracker.Finish(ctx, timerKey, FinishInput{Description: " done ", StatusID: 4, CorrectedMinutes: &corrected})
	require.NoError(t, err)
	assert.Equal(t, 15, snap.Minutes)

	assert.Equal(t, []string{"/play", "/correctWatch", "/stop", "/saveVerlaufApi"}, endpoints(f.fake.Calls("")))
	corr := f.fake.Calls("correctWatch")[0]
	assert.Equal(t, float64(15), corr.Body["minutes"])
	history := f.fake.Calls("saveVerlaufApi")[0]
	assert.Equal(t, float64(15), history.Body["minutes"])
	assert.Equal(t, "done", history.Body["description"])
	assert.Equal(t, float64(4), history.Body["status_id"])
}

type failingHistory struct {
	*ticketbase.Client
	fails int
}

func (f *failingHistory) SaveHistory(ctx context.Context, h ticketbase.HistoryEntry) error {
	if f.fails > 0 {
		f.fails--
		return errors.New("history unavailable")
	}
	return f.Client.SaveHistory(ctx, h)
}

func TestFinishHistoryFailureKeepsMinutesForRetry(t *testing.T) {
	remote := &failingHistory{fails: 1}
	f := newTrackerFixture(t, func(c *ticketbase.Client) TimerRemote {
		remote.Client = c
		return remote
	})
	ctx := context.Background()
	_, err := f.tracker.Start(ctx, timerKey)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)

	in := FinishInput{Description: "printer fixed", StatusID: 3}
	snap, err := f.tracker.Finish(ctx, timerKey, in)
	require.Error(t, err)
	assert.Equal(t, domain.TimerStopped, snap.Status)
	assert.Equal(t, 10, snap.Minutes)

	_, err = f.tracker.Start(ctx, timerKey)
	assert.ErrorIs(t, err, ErrInvalidTransition, "unbooked minutes block a new session")

	f.clock.Advance(5 * time.Minute)
	snap, err = f.tracker.Finish(ctx, timerKey, in)
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Minutes)

	assert.Len(t, f.fake.Calls("stop"), 1, "the retry only resubmits the history entry")
	history := f.fake.Calls("saveVerlaufApi")
	require.Len(t, history, 1)
	assert.Equal(t, float64(10), history[0].Body["minutes"])
	assert.Equal(t, "printer fixed", history[0].Body["description"])
	assert.Equal(t, []events.EventType{events.EventTimerStarted, events.EventTimerStopped}, *f.events)

	_, err = f.tracker.Finish(ctx, timerKey, in)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.tracker.Start(ctx, timerKey)
	assert.NoError(t, err)
}

func TestFinishSkipsUnchangedCorrection(t *testing.T) {
	f := newTrackerFixture(t, nil)
	ctx := context.Background()
	_, err := f.tracker.Start(ctx, timerKey)
	require.NoError(t, err)
	f.clock.Advance(10*time.Minute + 20*time.Second)

	same := 10
	snap, err := f.tracker.Finish(ctx, timerKey, FinishInput{Description: "done", StatusID: 4, CorrectedMinutes: &same})
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Minutes)
	assert.Empty(t, f.fake.Calls("correctWatch"))
	assert.Equal(t, float64(10), f.fake.Calls("saveVerlaufApi")[0].Body["minutes"])
}

func TestFinishValidation(t *testing.T) {
	f := newTrackerFixture(t, nil)
	negative := -1

	_, err := f.tracker.Finish(context.Background(), timerKey, FinishInput{Description: "  ", CorrectedMinutes: &negative})
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, "VALIDATION_FAILED", de.Code)
	assert.Contains(t, de.Details, "description")
	assert.Contains(t, de.Details, "status_id")
	assert.Contains(t, de.Details, "minutes")
	assert.Empty(t, f.fake.Calls(""))
}

type flakyStatus struct {
	*ticketbase.Client
	err error
}

func (f *flakyStatus) PlayerStatus(ctx context.Context, key domain.TimerKey) (ticketbase.PlayerStatus, error) {
	if f.err != nil {
		return ticketbase.PlayerStatus{}, f.err
	}
	return f.Client.PlayerStatus(ctx, key)
}

func TestRefreshFailureModes(t *testing.T) {
	tests := []struct {
		name       string
		inject     func(*ticketbasetest.Server, *flakyStatus)
		wantStatus domain.TimerStatus
		wantErr    error
	}{
		{
			name:       "rate limited keeps playing",
			inject:     func(s *ticketbasetest.Server, _ *flakyStatus) { s.FailWith("getPlayerStatus", http.StatusTooManyRequests) },
			wantStatus: domain.TimerPlaying,
			wantErr:    ticketbase.ErrRateLimited,
		},
		{
			name: "transport failure keeps playing",
			inject: func(_ *ticketbasetest.Server, fs *flakyStatus) {
				fs.err = fmt.Errorf("%w: dial tcp: refused", ticketbase.ErrTransport)
			},
			wantStatus: domain.TimerPlaying,
			wantErr:    ticketbase.ErrTransport,
		},
		{
			name:       "api error resets",
			inject:     func(s *ticketbasetest.Server, _ *flakyStatus) { s.RespondError("getPlayerStatus", "unknown ticket") },
			wantStatus: domain.TimerStopped,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var flaky *flakyStatus
			f := newTrackerFixture(t, func(c *ticketbase.Client) TimerRemote {
				flaky = &flakyStatus{Client: c}
				return flaky
			})
			_, err := f.tracker.Start(context.Background(), timerKey)
			require.NoError(t, err)
			f.clock.Advance(3 * time.Minute)

			tc.inject(f.fake, flaky)
			snap, err := f.tracker.Refresh(context.Background(), timerKey)
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
			assert.Equal(t, tc.wantStatus, snap.Status)
			assert.Equal(t, tc.wantStatus, f.tracker.Snapshot(timerKey).Status)
		})
	}
}

type blockingStatus struct {
	*ticketbase.Client
	entered chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (b *blockingStatus) PlayerStatus(ctx context.Context, key domain.TimerKey) (ticketbase.PlayerStatus, error) {
	close(b.entered)
	<-b.release
	b.ctxErr <- ctx.Err()
	return b.Client.PlayerStatus(ctx, key)
}

func TestRefreshSurvivesCancelledCaller(t *testing.T) {
	remote := &blockingStatus{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
	f := newTrackerFixture(t, func(c *ticketbase.Client) TimerRemote {
		remote.Client = c
		return remote
	})
	f.fake.SetPlayer(timerKey.TicketID, timerKey.UserID, "2", 42)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.tracker.Refresh(ctx, timerKey)
		done <- err
	}()

	<-remote.entered
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(remote.release)
	assert.NoError(t, <-remote.ctxErr, "the shared request keeps running")
	assert.Eventually(t, func() bool {
		return f.tracker.Snapshot(timerKey).Status == domain.TimerPaused
	}, time.Second, 5*time.Millisecond)
}

func TestRefreshAdoptsServerState(t *testing.T) {
	f := newTrackerFixture(t, nil)
	f.fake.SetPlayer(timerKey.TicketID, timerKey.UserID, "2", 42)

	snap, err := f.tracker.Refresh(context.Background(), timerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerPaused, snap.Status)
	assert.Equal(t, "00:42:00", snap.Display)

	f.fake.SetPlayer(timerKey.TicketID, timerKey.UserID, "", 0)
	snap, err = f.tracker.Refresh(context.Background(), timerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerStopped, snap.Status)
}

func TestResumeSchedulesResync(t *testing.T) {
	f := newTrackerFixture(t, nil)
	ctx := context.Background()
	_, err := f.tracker.Start(ctx, timerKey)
	require.NoError(t, err)
	_, err = f.tracker.Pause(ctx, timerKey)
	require.NoError(t, err)
	_, err = f.tracker.Resume(ctx, timerKey)
	require.NoError(t, err)
	require.Empty(t, f.fake.Calls("getPlayerStatus"))

	f.fake.SetPlayer(timerKey.TicketID, timerKey.UserID, "3", 20)
	f.clock.Advance(DefaultResyncDelay)

	require.Len(t, f.fake.Calls("getPlayerStatus"), 1)
	snap := f.tracker.Snapshot(timerKey)
	assert.Equal(t, domain.TimerPlaying, snap.Status)
	assert.Equal(t, 20*time.Minute, snap.Elapsed)
	assert.Equal(t, domain.ActionResume, snap.LastAction)
}

func TestPauseCancelsPendingResync(t *testing.T) {
	f := newTrackerFixture(t, nil)
	ctx := context.Background()
	_, _ = f.tracker.Start(ctx, timerKey)
	_, _ = f.tracker.Pause(ctx, timerKey)
	_, _ = f.tracker.Resume(ctx, timerKey)
	_, err := f.tracker.Pause(ctx, timerKey)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	assert.Empty(t, f.fake.Calls("getPlayerStatus"))
}

func TestTrackedKeys(t *testing.T) {
	f := newTrackerFixture(t, nil)
	ctx := context.Background()
	other := domain.TimerKey{TicketID: 9, UserID: 7}

	f.tracker.Track(other)
	_, err := f.tracker.Start(ctx, timerKey)
	require.NoError(t, err)
	assert.Equal(t, []domain.TimerKey{timerKey, other}, f.tracker.Tracked())

	_, err = f.tracker.Refresh(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, []domain.TimerKey{timerKey}, f.tracker.Tracked(), "synced stopped timer is no longer polled")

	f.tracker.Reset()
	assert.Empty(t, f.tracker.Tracked())
	assert.Equal(t, domain.TimerStopped, f.tracker.Snapshot(timerKey).Status)
}

func TestEventHandlerErrorsDoNotFailTransitions(t *testing.T) {
	fake := ticketbasetest.New(t)
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventTimerStarted, func(context.Context, events.Event) error {
		return errors.New("listener down")
	})
	tracker := NewTimeTracker(TimeTrackerDependencies{Remote: fake.Client(), Dispatcher: dispatcher})

	snap, err := tracker.Start(context.Background(), timerKey)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerPlaying, snap.Status)
}
