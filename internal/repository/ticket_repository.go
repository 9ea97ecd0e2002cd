package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/domain"
)

// Cache lifetimes per resource.
const (
	ListTTL     = 30 * time.Second
	TicketTTL   = 60 * time.Second
	CustomerTTL = 10 * time.Minute
)

const ticketListPrefix = "tickets:"

// Remote is the part of the ticketing API the repository reads from.
type Remote interface {
	Tickets(ctx context.Context, scope domain.Scope, unfiltered bool) (domain.TicketCollection, error)
	Ticket(ctx context.Context, id int64) (domain.Ticket, error)
	Customers(ctx context.Context) ([]domain.Customer, error)
}

// TicketRepository reads tickets and customers through the cache.
type TicketRepository interface {
	List(ctx context.Context, scope domain.Scope) (domain.TicketCollection, error)
	ListUnrestricted(ctx context.Context, scope domain.Scope) (domain.TicketCollection, error)
	GetByID(ctx context.Context, id int64) (domain.Ticket, error)
	Customers(ctx context.Context) ([]domain.Customer, error)
	Invalidate(ctx context.Context) int
}

type ticketRepository struct {
	remote Remote
	cache  *cache.Cache
	logger *zap.Logger
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(remote Remote, c *cache.Cache, logger *zap.Logger) TicketRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ticketRepository{remote: remote, cache: c, logger: logger}
}

func (r *ticketRepository) List(ctx context.Context, scope domain.Scope) (domain.TicketCollection, error) {
	return r.list(ctx, scope, false)
}

func (r *ticketRepository) ListUnrestricted(ctx context.Context, scope domain.Scope) (domain.TicketCollection, error) {
	return r.list(ctx, scope, true)
}

func (r *ticketRepository) list(ctx context.Context, scope domain.Scope, unfiltered bool) (domain.TicketCollection, error) {
	key := listKey(scope, unfiltered)
	var coll domain.TicketCollection
	if r.cache.Get(ctx, key, &coll) {
		return coll, nil
	}
	coll, err := r.remote.Tickets(ctx, scope, unfiltered)
	if err != nil {
		return domain.TicketCollection{}, fmt.Errorf("list tickets: %w", err)
	}
	r.cache.Set(ctx, key, coll, ListTTL)
	return coll, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (domain.Ticket, error) {
	key := fmt.Sprintf("ticket:%d", id)
	var t domain.Ticket
	if r.cache.Get(ctx, key, &t) {
		return t, nil
	}
	t, err := r.remote.Ticket(ctx, id)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("get ticket %d: %w", id, err)
	}
	r.cache.Set(ctx, key, t, TicketTTL)
	return t, nil
}

func (r *ticketRepository) Customers(ctx context.Context) ([]domain.Customer, error) {
	const key = "customers"
	var customers []domain.Customer
	if r.cache.Get(ctx, key, &customers) {
		return customers, nil
	}
	customers, err := r.remote.Customers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	r.cache.Set(ctx, key, customers, CustomerTTL)
	return customers, nil
}

// Invalidate drops every cached ticket list and returns how many entries went.
func (r *ticketRepository) Invalidate(ctx context.Context) int {
	n := r.cache.InvalidateByPattern(ctx, ticketListPrefix)
	r.logger.Debug("ticket lists invalidated", zap.Int("entries", n))
	return n
}

func listKey(scope domain.Scope, unfiltered bool) string {
	kind := "scoped"
	if unfiltered {
		kind = "unfiltered"
	}
	return fmt.Sprintf("%s%s:%d:%d:%d:%d", ticketListPrefix, kind, scope.UserID, scope.GroupID, scope.CompanyID, scope.LocationID)
}
