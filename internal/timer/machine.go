// Package timer holds the pure time-tracking transition function. Network
// calls and scheduling live in the service layer; this package only maps a
// state and a confirmed event to the next state.
package timer

import (
	"fmt"
	"time"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// Event is a server-confirmed occurrence applied to a timer state.
type Event interface {
	isEvent()
}

// Started is a confirmed play action.
type Started struct{ At time.Time }

// Paused is a confirmed pause action.
type Paused struct{ At time.Time }

// Resumed is a confirmed resume action.
type Resumed struct{ At time.Time }

// Stopped is a confirmed stop or finish.
type Stopped struct{}

// Synced carries the server's authoritative status and cumulative time.
type Synced struct {
	Status domain.TimerStatus
	Total  time.Duration
	At     time.Time
}

// Failed is a genuine error while reconciling.
type Failed struct{}

func (Started) isEvent() {}
func (Paused) isEvent()  {}
func (Resumed) isEvent() {}
func (Stopped) isEvent() {}
func (Synced) isEvent()  {}
func (Failed) isEvent()  {}

// Apply returns the state after e. Events that are not valid from the current
// status leave it unchanged.
func Apply(s domain.TimerState, e Event) domain.TimerState {
	switch ev := e.(type) {
	case Started:
		if s.Status != domain.TimerStopped {
			return s
		}
		return domain.TimerState{
			Status:     domain.TimerPlaying,
			Anchor:     ev.At,
			LastAction: domain.ActionPlay,
		}
	case Paused:
		if s.Status != domain.TimerPlaying {
			return s
		}
		return domain.TimerState{
			Status:     domain.TimerPaused,
			Elapsed:    nonNegative(ev.At.Sub(s.Anchor)),
			LastAction: domain.ActionPause,
		}
	case Resumed:
		if s.Status != domain.TimerPaused {
			return s
		}
		return domain.TimerState{
			Status:     domain.TimerPlaying,
			Elapsed:    s.Elapsed,
			Anchor:     ev.At.Add(-s.Elapsed),
			LastAction: domain.ActionResume,
		}
	case Stopped:
		if s.Status == domain.TimerStopped {
			return s
		}
		return domain.StoppedTimer()
	case Synced:
		return synced(s, ev)
	case Failed:
		return domain.StoppedTimer()
	}
	return s
}

func synced(s domain.TimerState, ev Synced) domain.TimerState {
	total := nonNegative(ev.Total)
	switch ev.Status {
	case domain.TimerPlaying:
		last := s.LastAction
		if last != domain.ActionPlay && last != domain.ActionResume {
			last = domain.ActionPlay
		}
		return domain.TimerState{
			Status:     domain.TimerPlaying,
			Elapsed:    total,
			Anchor:     ev.At.Add(-total),
			LastAction: last,
		}
	case domain.TimerPaused:
		return domain.TimerState{
			Status:     domain.TimerPaused,
			Elapsed:    total,
			LastAction: domain.ActionPause,
		}
	default:
		return domain.StoppedTimer()
	}
}

// Elapsed is the displayed elapsed time at now.
func Elapsed(s domain.TimerState, now time.Time) time.Duration {
	if s.Status == domain.TimerPlaying && !s.Anchor.IsZero() {
		return nonNegative(now.Sub(s.Anchor))
	}
	return s.Elapsed
}

// Minutes rounds the elapsed time at now to whole minutes.
func Minutes(s domain.TimerState, now time.Time) int {
	return int(Elapsed(s, now).Round(time.Minute) / time.Minute)
}

// Format renders d as HH:MM:SS. Hours are not wrapped at 24.
func Format(d time.Duration) string {
	d = nonNegative(d).Truncate(time.Second)
	h := int64(d / time.Hour)
	m := int64(d/time.Minute) % 60
	sec := int64(d/time.Second) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
