package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/ticket-desk/internal/clock"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/events"
	"github.com/spec-kit/ticket-desk/internal/ticketbase"
	"github.com/spec-kit/ticket-desk/internal/timer"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

const (
	// DefaultResyncDelay is the wait between a resume and its reconciliation.
	DefaultResyncDelay = 2 * time.Second
	// refreshTimeout bounds one shared status request.
	refreshTimeout = 30 * time.Second
)

var (
	// ErrTimerConflict is returned when the server refuses to start a timer
	// because one is already running. The local state has been reconciled.
	ErrTimerConflict = errors.New("timer already running")
	// ErrInvalidTransition is returned for an action the current state does
	// not allow.
	ErrInvalidTransition = errors.New("invalid timer transition")
)

// TimerRemote is the timer part of the ticketing API.
type TimerRemote interface {
	PlayerStatus(ctx context.Context, key domain.TimerKey) (ticketbase.PlayerStatus, error)
	Play(ctx context.Context, a ticketbase.TimerAction) error
	Pause(ctx context.Context, a ticketbase.TimerAction) error
	Resume(ctx context.Context, a ticketbase.TimerAction) error
	Stop(ctx context.Context, a ticketbase.TimerAction) error
	CorrectWatch(ctx context.Context, c ticketbase.Correction) error
	SaveHistory(ctx context.Context, h ticketbase.HistoryEntry) error
}

// TimerSnapshot is the displayed state of one timer.
type TimerSnapshot struct {
	Key        domain.TimerKey
	Status     domain.TimerStatus
	LastAction domain.ActionCode
	Elapsed    time.Duration
	Minutes    int
	Display    string
}

// heldBooking is time stopped on the server whose history entry has not been
// saved yet.
type heldBooking struct {
	previous domain.TimerStatus
	minutes  int
}

// FinishInput closes a timer session.
type FinishInput struct {
	Description string
	StatusID    int64
	// CorrectedMinutes replaces the tracked minutes when set.
	CorrectedMinutes *int
}

// TimeTracker runs the technician's ticket timers against the remote API.
type TimeTracker struct {
	remote      TimerRemote
	dispatcher  events.Dispatcher
	clock       clock.Clock
	logger      *zap.Logger
	resyncDelay time.Duration

	flight singleflight.Group

	mu      sync.Mutex
	states  map[domain.TimerKey]domain.TimerState
	pending map[domain.TimerKey]struct{}
	locks   map[domain.TimerKey]*sync.Mutex
	resyncs map[domain.TimerKey]clock.Timer
	held    map[domain.TimerKey]heldBooking
}

// TimeTrackerDependencies bundles collaborators for the tracker.
type TimeTrackerDependencies struct {
	Remote      TimerRemote
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Logger      *zap.Logger
	ResyncDelay time.Duration
}

// NewTimeTracker constructs the tracker.
func NewTimeTracker(deps TimeTrackerDependencies) *TimeTracker {
	t := &TimeTracker{
		remote:      deps.Remote,
		dispatcher:  deps.Dispatcher,
		clock:       deps.Clock,
		logger:      deps.Logger,
		resyncDelay: deps.ResyncDelay,
		states:      make(map[domain.TimerKey]domain.TimerState),
		pending:     make(map[domain.TimerKey]struct{}),
		locks:       make(map[domain.TimerKey]*sync.Mutex),
		resyncs:     make(map[domain.TimerKey]clock.Timer),
		held:        make(map[domain.TimerKey]heldBooking),
	}
	if t.clock == nil {
		t.clock = clock.Real()
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	if t.resyncDelay <= 0 {
		t.resyncDelay = DefaultResyncDelay
	}
	return t
}

// Start begins tracking time on a stopped timer.
func (t *TimeTracker) Start(ctx context.Context, key domain.TimerKey) (TimerSnapshot, error) {
	unlock := t.lockKey(key)
	defer unlock()

	cur := t.state(key)
	if cur.Status != domain.TimerStopped {
		return t.snapshot(key, cur), t.invalid("start", cur)
	}
	if b, ok := t.heldBooking(key); ok {
		return t.snapshot(key, cur), fmt.Errorf("%w: %d min of the last session are not booked yet", ErrInvalidTransition, b.minutes)
	}
	err := t.remote.Play(ctx, t.action(key, cur))
	if errors.Is(err, ticketbase.ErrExists) {
		snap, syncErr := t.refreshLocked(ctx, key)
		if syncErr != nil {
			t.logger.Warn("timer reconcile after conflict failed", zap.Int64("ticket_id", key.TicketID), zap.Error(syncErr))
		}
		return snap, fmt.Errorf("%w: %v", ErrTimerConflict, err)
	}
	if err != nil {
		return t.snapshot(key, cur), fmt.Errorf("start timer: %w", err)
	}
	next := t.transition(ctx, key, cur, timer.Started{At: t.clock.Now()}, events.EventTimerStarted, 0)
	return t.snapshot(key, next), nil
}

// Pause freezes a playing timer.
func (t *TimeTracker) Pause(ctx context.Context, key domain.TimerKey) (TimerSnapshot, error) {
	unlock := t.lockKey(key)
	defer unlock()

	cur := t.state(key)
	if cur.Status != domain.TimerPlaying {
		return t.snapshot(key, cur), t.invalid("pause", cur)
	}
	if err := t.remote.Pause(ctx, t.action(key, cur)); err != nil {
		return t.snapshot(key, cur), fmt.Errorf("pause timer: %w", err)
	}
	t.cancelResync(key)
	next := t.transition(ctx, key, cur, timer.Paused{At: t.clock.Now()}, events.EventTimerPaused, 0)
	return t.snapshot(key, next), nil
}

// Resume continues a paused timer and schedules a reconciliation shortly
// after.
func (t *TimeTracker) Resume(ctx context.Context, key domain.TimerKey) (TimerSnapshot, error) {
	unlock := t.lockKey(key)
	defer unlock()

	cur := t.state(key)
	if cur.Status != domain.TimerPaused {
		return t.snapshot(key, cur), t.invalid("resume", cur)
	}
	if err := t.remote.Resume(ctx, t.action(key, cur)); err != nil {
		return t.snapshot(key, cur), fmt.Errorf("resume timer: %w", err)
	}
	next := t.transition(ctx, key, cur, timer.Resumed{At: t.clock.Now()}, events.EventTimerResumed, 0)
	t.scheduleResync(key)
	return t.snapshot(key, next), nil
}

// Finish stops a running or paused timer and books the time. A correction
// that differs from the tracked minutes is sent before the stop; the history
// entry carries the final minutes. When the history entry fails after the
// stop, the minutes are held and a later Finish only resubmits the entry.
func (t *TimeTracker) Finish(ctx context.Context, key domain.TimerKey, in FinishInput) (TimerSnapshot, error) {
	if err := in.validate(); err != nil {
		return TimerSnapshot{}, err
	}

	unlock := t.lockKey(key)
	defer unlock()

	cur := t.state(key)
	booking, held := t.heldBooking(key)
	if cur.Status == domain.TimerStopped && !held {
		return t.snapshot(key, cur), t.invalid("finish", cur)
	}

	if cur.Status == domain.TimerStopped {
		if in.CorrectedMinutes != nil {
			booking.minutes = *in.CorrectedMinutes
		}
	} else {
		booking = heldBooking{previous: cur.Status, minutes: timer.Minutes(cur, t.clock.Now())}
		if in.CorrectedMinutes != nil && *in.CorrectedMinutes != booking.minutes {
			corr := ticketbase.Correction{TicketID: key.TicketID, UserID: key.UserID, Minutes: *in.CorrectedMinutes}
			if err := t.remote.CorrectWatch(ctx, corr); err != nil {
				return t.snapshot(key, cur), fmt.Errorf("correct tracked time: %w", err)
			}
			booking.minutes = *in.CorrectedMinutes
		}
		if err := t.remote.Stop(ctx, t.action(key, cur)); err != nil {
			return t.snapshot(key, cur), fmt.Errorf("stop timer: %w", err)
		}
		t.cancelResync(key)
		t.store(key, timer.Apply(cur, timer.Stopped{}))
	}

	next := t.state(key)
	snap := t.snapshot(key, next)
	snap.Minutes = booking.minutes

	entry := ticketbase.HistoryEntry{
		TicketID:    key.TicketID,
		UserID:      key.UserID,
		Description: strings.TrimSpace(in.Description),
		StatusID:    in.StatusID,
		Minutes:     booking.minutes,
	}
	if err := t.remote.SaveHistory(ctx, entry); err != nil {
		t.holdBooking(key, booking)
		return snap, fmt.Errorf("save history entry: %w", err)
	}
	t.releaseBooking(key)
	t.publish(ctx, key, booking.previous, next, events.EventTimerStopped, booking.minutes)
	return snap, nil
}

// Refresh adopts the server's timer state. Rate limiting and transport
// failures keep the local state; any other error resets it to stopped.
// Concurrent refreshes of one key share a single request, which outlives a
// cancelled caller so the others still get its result.
func (t *TimeTracker) Refresh(ctx context.Context, key domain.TimerKey) (TimerSnapshot, error) {
	shared := context.WithoutCancel(ctx)
	ch := t.flight.DoChan(flightKey(key), func() (any, error) {
		fctx, cancel := context.WithTimeout(shared, refreshTimeout)
		defer cancel()
		unlock := t.lockKey(key)
		defer unlock()
		return t.refreshLocked(fctx, key)
	})
	select {
	case res := <-ch:
		snap, ok := res.Val.(TimerSnapshot)
		if !ok {
			snap = t.Snapshot(key)
		}
		return snap, res.Err
	case <-ctx.Done():
		return t.Snapshot(key), fmt.Errorf("timer status: %w", ctx.Err())
	}
}

// Snapshot returns the current state of key with the live elapsed time.
func (t *TimeTracker) Snapshot(key domain.TimerKey) TimerSnapshot {
	return t.snapshot(key, t.state(key))
}

// Track registers keys for reconciliation by the poller.
func (t *TimeTracker) Track(keys ...domain.TimerKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range keys {
		if s, ok := t.states[k]; ok && s.Status != domain.TimerStopped {
			continue
		}
		t.pending[k] = struct{}{}
	}
}

// Tracked lists the keys the poller reconciles: running or paused timers and
// keys registered but not yet synced.
func (t *TimeTracker) Tracked() []domain.TimerKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := make(map[domain.TimerKey]struct{}, len(t.states)+len(t.pending))
	for k, s := range t.states {
		if s.Status != domain.TimerStopped {
			set[k] = struct{}{}
		}
	}
	for k := range t.pending {
		set[k] = struct{}{}
	}
	out := make([]domain.TimerKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TicketID != out[j].TicketID {
			return out[i].TicketID < out[j].TicketID
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Reset forgets every timer and cancels pending reconciliations.
func (t *TimeTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.resyncs {
		r.Stop()
	}
	t.states = make(map[domain.TimerKey]domain.TimerState)
	t.pending = make(map[domain.TimerKey]struct{})
	t.resyncs = make(map[domain.TimerKey]clock.Timer)
	t.held = make(map[domain.TimerKey]heldBooking)
}

func (t *TimeTracker) refreshLocked(ctx context.Context, key domain.TimerKey) (TimerSnapshot, error) {
	cur := t.state(key)
	status, err := t.remote.PlayerStatus(ctx, key)
	if err != nil {
		if errors.Is(err, ticketbase.ErrRateLimited) || errors.Is(err, ticketbase.ErrTransport) || errors.Is(err, context.Canceled) {
			return t.snapshot(key, cur), fmt.Errorf("timer status: %w", err)
		}
		next := t.transition(ctx, key, cur, timer.Failed{}, events.EventTimerSynced, 0)
		t.clearPending(key)
		return t.snapshot(key, next), fmt.Errorf("timer status: %w", err)
	}
	next := t.transition(ctx, key, cur, timer.Synced{Status: status.Status, Total: status.Total, At: t.clock.Now()}, events.EventTimerSynced, 0)
	t.clearPending(key)
	return t.snapshot(key, next), nil
}

// transition stores the state after ev and publishes eventType.
func (t *TimeTracker) transition(ctx context.Context, key domain.TimerKey, cur domain.TimerState, ev timer.Event, eventType events.EventType, minutes int) domain.TimerState {
	next := timer.Apply(cur, ev)
	t.store(key, next)
	t.publish(ctx, key, cur.Status, next, eventType, minutes)
	return next
}

func (t *TimeTracker) store(key domain.TimerKey, s domain.TimerState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[key] = s
}

func (t *TimeTracker) publish(ctx context.Context, key domain.TimerKey, previous domain.TimerStatus, next domain.TimerState, eventType events.EventType, minutes int) {
	t.logger.Debug("timer transition",
		zap.Int64("ticket_id", key.TicketID),
		zap.String("from", string(previous)),
		zap.String("to", string(next.Status)))

	if t.dispatcher == nil {
		return
	}
	payload := events.TimerPayload{
		Previous: previous,
		Current:  next.Status,
		Elapsed:  timer.Elapsed(next, t.clock.Now()),
		Minutes:  minutes,
	}
	event := events.New(eventType, key.TicketID, key.UserID, t.clock.Now(), payload)
	if err := t.dispatcher.Publish(ctx, event); err != nil {
		t.logger.Warn("timer event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}

func (t *TimeTracker) heldBooking(key domain.TimerKey) (heldBooking, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.held[key]
	return b, ok
}

func (t *TimeTracker) holdBooking(key domain.TimerKey, b heldBooking) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.held[key] = b
}

func (t *TimeTracker) releaseBooking(key domain.TimerKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.held, key)
}

func (t *TimeTracker) scheduleResync(key domain.TimerKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.resyncs[key]; ok {
		prev.Stop()
	}
	t.resyncs[key] = t.clock.AfterFunc(t.resyncDelay, func() {
		t.mu.Lock()
		delete(t.resyncs, key)
		t.mu.Unlock()
		if _, err := t.Refresh(context.Background(), key); err != nil {
			t.logger.Warn("timer resync failed", zap.Int64("ticket_id", key.TicketID), zap.Error(err))
		}
	})
}

func (t *TimeTracker) cancelResync(key domain.TimerKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.resyncs[key]; ok {
		r.Stop()
		delete(t.resyncs, key)
	}
}

func (t *TimeTracker) clearPending(key domain.TimerKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, key)
}

func (t *TimeTracker) state(key domain.TimerKey) domain.TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[key]; ok {
		return s
	}
	return domain.StoppedTimer()
}

func (t *TimeTracker) lockKey(key domain.TimerKey) func() {
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	t.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (t *TimeTracker) snapshot(key domain.TimerKey, s domain.TimerState) TimerSnapshot {
	now := t.clock.Now()
	elapsed := timer.Elapsed(s, now)
	return TimerSnapshot{
		Key:        key,
		Status:     s.Status,
		LastAction: s.LastAction,
		Elapsed:    elapsed,
		Minutes:    timer.Minutes(s, now),
		Display:    timer.Format(elapsed),
	}
}

// action carries the previous action code; a stopped timer always reports STOP.
func (t *TimeTracker) action(key domain.TimerKey, cur domain.TimerState) ticketbase.TimerAction {
	code := cur.LastAction
	if cur.Status == domain.TimerStopped || code == domain.ActionNone {
		code = domain.ActionStop
	}
	return ticketbase.TimerAction{TicketID: key.TicketID, UserID: key.UserID, CurrentState: code}
}

func (t *TimeTracker) invalid(action string, cur domain.TimerState) error {
	return fmt.Errorf("%w: cannot %s a %s timer", ErrInvalidTransition, action, cur.Status)
}

func (in FinishInput) validate() error {
	details := map[string]any{}
	if strings.TrimSpace(in.Description) == "" {
		details["description"] = "required"
	}
	if in.StatusID <= 0 {
		details["status_id"] = "required"
	}
	if in.CorrectedMinutes != nil && *in.CorrectedMinutes < 0 {
		details["minutes"] = "must not be negative"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid finish request", details)
	}
	return nil
}

func flightKey(key domain.TimerKey) string {
	return fmt.Sprintf("%d/%d", key.TicketID, key.UserID)
}
