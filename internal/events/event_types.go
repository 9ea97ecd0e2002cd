package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTimerStarted     EventType = "timer_started"
	EventTimerPaused      EventType = "timer_paused"
	EventTimerResumed     EventType = "timer_resumed"
	EventTimerStopped     EventType = "timer_stopped"
	EventTimerSynced      EventType = "timer_synced"
	EventTicketsRefreshed EventType = "tickets_refreshed"
)

// TimerEventTypes lists every timer transition event.
var TimerEventTypes = []EventType{
	EventTimerStarted,
	EventTimerPaused,
	EventTimerResumed,
	EventTimerStopped,
	EventTimerSynced,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id,omitempty"`
	UserID    int64       `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id.
func New(eventType EventType, ticketID, userID int64, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		UserID:    userID,
		Timestamp: at,
		Payload:   payload,
	}
}

// TimerPayload payload.
type TimerPayload struct {
	Previous domain.TimerStatus `json:"previous"`
	Current  domain.TimerStatus `json:"current"`
	Elapsed  time.Duration      `json:"elapsed"`
	Minutes  int                `json:"minutes,omitempty"`
}

// TicketsRefreshedPayload payload.
type TicketsRefreshedPayload struct {
	Generation  uint64 `json:"generation"`
	MyTickets   int    `json:"my_tickets"`
	NewTickets  int    `json:"new_tickets"`
	AllTickets  int    `json:"all_tickets"`
	Invalidated int    `json:"invalidated"`
}
