package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler reacts to a timer or ticket refresh event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans timer transitions and list refreshes out to the services
// that follow them, such as the notification feed.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
	SubscribeAll(eventTypes []EventType, handler EventHandler)
}

type localDispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

// NewInMemoryDispatcher returns a process-local dispatcher. Handlers run on
// the publisher's goroutine, in subscription order.
func NewInMemoryDispatcher() Dispatcher {
	return &localDispatcher{handlers: make(map[EventType][]EventHandler)}
}

// Publish runs every handler for event.Type, even after one fails or panics.
// A handler failure never undoes the transition that published the event; the
// publisher only logs the joined error.
func (d *localDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler(nil), d.handlers[event.Type]...)
	d.mu.RUnlock()

	var errs []error
	for i, h := range handlers {
		if err := invoke(ctx, h, event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler %d: %w", event.Type, i, err))
		}
	}
	return errors.Join(errs...)
}

func (d *localDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.SubscribeAll([]EventType{eventType}, handler)
}

// SubscribeAll registers handler for each of eventTypes, e.g. TimerEventTypes.
func (d *localDispatcher) SubscribeAll(eventTypes []EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, et := range eventTypes {
		d.handlers[et] = append(d.handlers[et], handler)
	}
}

func invoke(ctx context.Context, h EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, event)
}
