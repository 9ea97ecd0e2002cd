package domain

import "time"

// TimerStatus is the displayed state of a ticket timer.
type TimerStatus string

const (
	TimerStopped TimerStatus = "stopped"
	TimerPlaying TimerStatus = "playing"
	TimerPaused  TimerStatus = "paused"
)

// ActionCode is the backend's historical timer action code.
type ActionCode int

const (
	ActionNone   ActionCode = 0
	ActionPlay   ActionCode = 1
	ActionPause  ActionCode = 2
	ActionResume ActionCode = 3
	ActionStop   ActionCode = 4
)

// TimerKey identifies one timer.
type TimerKey struct {
	TicketID int64
	UserID   int64
}

// TimerState is the local view of one timer. Anchor is only set while playing.
type TimerState struct {
	Status     TimerStatus
	Elapsed    time.Duration
	Anchor     time.Time
	LastAction ActionCode
}

// StoppedTimer is the initial timer state. The backend expects STOP as the
// previous action of a timer that never ran.
func StoppedTimer() TimerState {
	return TimerState{Status: TimerStopped, LastAction: ActionStop}
}
