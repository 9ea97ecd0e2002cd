package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/events"
)

// MaxNotifications bounds the in-memory notification feed.
const MaxNotifications = 50

// Notification is one entry of the technician's activity feed.
type Notification struct {
	ID       string           `json:"id"`
	Type     events.EventType `json:"type"`
	TicketID int64            `json:"ticket_id,omitempty"`
	Message  string           `json:"message"`
	At       time.Time        `json:"at"`
}

// NotificationService turns timer and refresh events into log lines and a
// short feed of notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger

	mu       sync.Mutex
	feed     []Notification
	lastNew  int
	seenList bool
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.SubscribeAll(events.TimerEventTypes, n.handleTimer)
	n.dispatcher.Subscribe(events.EventTicketsRefreshed, n.handleTicketsRefreshed)
}

// Recent returns up to limit notifications, newest first.
func (n *NotificationService) Recent(limit int) []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if limit <= 0 || limit > len(n.feed) {
		limit = len(n.feed)
	}
	out := make([]Notification, 0, limit)
	for i := len(n.feed) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, n.feed[i])
	}
	return out
}

// Reset empties the feed.
func (n *NotificationService) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.feed = nil
	n.lastNew = 0
	n.seenList = false
}

func (n *NotificationService) handleTimer(_ context.Context, event events.Event) error {
	p, _ := event.Payload.(events.TimerPayload)
	n.logger.Info(string(event.Type),
		zap.Int64("ticket_id", event.TicketID),
		zap.Int64("user_id", event.UserID),
		zap.String("from", string(p.Previous)),
		zap.String("to", string(p.Current)),
		zap.Duration("elapsed", p.Elapsed))

	var msg string
	switch event.Type {
	case events.EventTimerStarted:
		msg = fmt.Sprintf("Timer started for ticket #%d", event.TicketID)
	case events.EventTimerPaused:
		msg = fmt.Sprintf("Timer paused for ticket #%d", event.TicketID)
	case events.EventTimerResumed:
		msg = fmt.Sprintf("Timer resumed for ticket #%d", event.TicketID)
	case events.EventTimerStopped:
		msg = fmt.Sprintf("Booked %d min on ticket #%d", p.Minutes, event.TicketID)
	case events.EventTimerSynced:
		if p.Previous == p.Current {
			return nil
		}
		msg = fmt.Sprintf("Timer for ticket #%d is now %s", event.TicketID, p.Current)
	default:
		return nil
	}
	n.push(event, msg)
	return nil
}

func (n *NotificationService) handleTicketsRefreshed(_ context.Context, event events.Event) error {
	p, _ := event.Payload.(events.TicketsRefreshedPayload)
	n.logger.Debug(string(event.Type),
		zap.Uint64("generation", p.Generation),
		zap.Int("my", p.MyTickets),
		zap.Int("new", p.NewTickets),
		zap.Int("all", p.AllTickets),
		zap.Int("invalidated", p.Invalidated))

	n.mu.Lock()
	grew := n.seenList && p.NewTickets > n.lastNew
	delta := p.NewTickets - n.lastNew
	n.lastNew = p.NewTickets
	n.seenList = true
	n.mu.Unlock()

	if grew {
		n.push(event, fmt.Sprintf("%d new ticket(s) waiting", delta))
	}
	return nil
}

func (n *NotificationService) push(event events.Event, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.feed = append(n.feed, Notification{
		ID:       event.ID,
		Type:     event.Type,
		TicketID: event.TicketID,
		Message:  msg,
		At:       event.Timestamp,
	})
	if len(n.feed) > MaxNotifications {
		n.feed = append([]Notification(nil), n.feed[len(n.feed)-MaxNotifications:]...)
	}
}
