// Package worker runs the background synchronisation with the ticketing API.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-desk/internal/auth"
	"github.com/spec-kit/ticket-desk/internal/clock"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/service"
)

// DefaultInterval applies to both loops when none is configured.
const DefaultInterval = 30 * time.Second

// TicketRefresher reloads the ticket lists.
type TicketRefresher interface {
	Refresh(ctx context.Context, tech domain.Technician) error
	PlayingTickets() []int64
}

// TimerReconciler adopts the server's timer states.
type TimerReconciler interface {
	Track(keys ...domain.TimerKey)
	Tracked() []domain.TimerKey
	Refresh(ctx context.Context, key domain.TimerKey) (service.TimerSnapshot, error)
}

// Poller refreshes the ticket lists and reconciles timers on two independent
// tickers. Failures are logged and retried on the next tick.
type Poller struct {
	tickets       TicketRefresher
	timers        TimerReconciler
	sessions      auth.CurrentTechnician
	clock         clock.Clock
	logger        *zap.Logger
	listInterval  time.Duration
	timerInterval time.Duration
}

// PollerDependencies bundles collaborators for the poller.
type PollerDependencies struct {
	Tickets       TicketRefresher
	Timers        TimerReconciler
	Sessions      auth.CurrentTechnician
	Clock         clock.Clock
	Logger        *zap.Logger
	ListInterval  time.Duration
	TimerInterval time.Duration
}

// NewPoller constructs the poller.
func NewPoller(deps PollerDependencies) *Poller {
	p := &Poller{
		tickets:       deps.Tickets,
		timers:        deps.Timers,
		sessions:      deps.Sessions,
		clock:         deps.Clock,
		logger:        deps.Logger,
		listInterval:  deps.ListInterval,
		timerInterval: deps.TimerInterval,
	}
	if p.clock == nil {
		p.clock = clock.Real()
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.listInterval <= 0 {
		p.listInterval = DefaultInterval
	}
	if p.timerInterval <= 0 {
		p.timerInterval = DefaultInterval
	}
	return p
}

// Run blocks until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	listTicker := p.clock.NewTicker(p.listInterval)
	defer listTicker.Stop()
	timerTicker := p.clock.NewTicker(p.timerInterval)
	defer timerTicker.Stop()

	p.logger.Info("poller started",
		zap.Duration("list_interval", p.listInterval),
		zap.Duration("timer_interval", p.timerInterval))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop(ctx, listTicker, p.RefreshTickets) })
	g.Go(func() error { return loop(ctx, timerTicker, p.ReconcileTimers) })
	err := g.Wait()
	p.logger.Info("poller stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RefreshTickets runs one list refresh for the logged-in technician.
func (p *Poller) RefreshTickets(ctx context.Context) {
	tech, ok := p.current(ctx)
	if !ok {
		return
	}
	if err := p.tickets.Refresh(ctx, tech); err != nil {
		p.logger.Warn("ticket refresh failed", zap.Error(err))
	}
}

// ReconcileTimers refreshes every tracked timer of the logged-in technician.
// Tickets the list marks as playing are tracked first.
func (p *Poller) ReconcileTimers(ctx context.Context) {
	tech, ok := p.current(ctx)
	if !ok {
		return
	}
	for _, id := range p.tickets.PlayingTickets() {
		p.timers.Track(domain.TimerKey{TicketID: id, UserID: tech.ID})
	}
	for _, key := range p.timers.Tracked() {
		if ctx.Err() != nil {
			return
		}
		if key.UserID != tech.ID {
			continue
		}
		if _, err := p.timers.Refresh(ctx, key); err != nil {
			p.logger.Warn("timer reconcile failed", zap.Int64("ticket_id", key.TicketID), zap.Error(err))
		}
	}
}

func (p *Poller) current(ctx context.Context) (domain.Technician, bool) {
	tech, err := p.sessions.Current(ctx)
	if err != nil {
		p.logger.Debug("poll skipped, not logged in")
		return domain.Technician{}, false
	}
	return tech, true
}

func loop(ctx context.Context, ticker clock.Ticker, tick func(context.Context)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			tick(ctx)
		}
	}
}
