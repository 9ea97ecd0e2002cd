package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/ticket-desk/internal/clock"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/events"
	"github.com/spec-kit/ticket-desk/internal/listing"
	"github.com/spec-kit/ticket-desk/internal/repository"
	"github.com/spec-kit/ticket-desk/internal/session"
	"github.com/spec-kit/ticket-desk/internal/ticketbase"
)

// MaxCustomerSuggestions caps the customer autocomplete.
const MaxCustomerSuggestions = 10

// TicketView is one rendered tab.
type TicketView struct {
	Tab     domain.Tab
	Page    listing.Page
	Filters domain.FilterState
	// Counts holds the filtered size of every tab.
	Counts map[domain.Tab]int
	// Stale is set when the remote list could not be fetched and the last
	// good collection was used.
	Stale bool
}

// ListingService computes ticket list views from the remote collections and
// the session's filter state.
type ListingService struct {
	tickets    repository.TicketRepository
	session    *session.Store
	engine     *listing.Engine
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger

	primarySeq  Sequencer
	advancedSeq Sequencer
	flight      singleflight.Group

	mu           sync.Mutex
	primary      *domain.TicketCollection
	unrestricted *domain.TicketCollection
}

// ListingDependencies bundles collaborators for the listing service.
type ListingDependencies struct {
	TicketRepo repository.TicketRepository
	Session    *session.Store
	Engine     *listing.Engine
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// NewListingService constructs the service.
func NewListingService(deps ListingDependencies) *ListingService {
	s := &ListingService{
		tickets:    deps.TicketRepo,
		session:    deps.Session,
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
	if s.engine == nil {
		s.engine = listing.NewEngine(nil, nil)
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// View renders tab for tech with the session's current filters.
func (s *ListingService) View(ctx context.Context, tech domain.Technician, tab domain.Tab) (TicketView, error) {
	filters := s.session.Filters()

	coll, stale, err := s.primaryCollection(ctx, tech.Scope())
	if err != nil {
		return TicketView{}, err
	}

	var unrestricted *domain.TicketCollection
	if filters.CustomerScoped() || filters.ShowAdvanced {
		unrestricted = s.loadUnrestricted(ctx, tech.Scope())
	}

	var customers []domain.Customer
	if filters.CustomerScoped() {
		customers, err = s.tickets.Customers(ctx)
		if err != nil {
			s.logger.Warn("customer directory unavailable", zap.Error(err))
		}
	}

	in := listing.Input{
		Primary:      coll.Partition(tab),
		Unrestricted: unrestricted,
		Filter:       filters,
		Customers:    customers,
	}
	in.Searched = s.searchedTicket(ctx, in)

	counts := make(map[domain.Tab]int, len(domain.Tabs))
	var active []domain.Ticket
	for _, t := range domain.Tabs {
		tabIn := in
		tabIn.Primary = coll.Partition(t)
		result := s.engine.Apply(tabIn)
		counts[t] = len(result)
		if t == tab {
			active = result
		}
	}

	s.session.SetActiveTab(tab)
	return TicketView{
		Tab:     tab,
		Page:    listing.Paginate(active, s.session.Visible(tab)),
		Filters: filters,
		Counts:  counts,
		Stale:   stale,
	}, nil
}

// Refresh drops cached lists and refetches them. Results older than a fetch
// started later are discarded.
func (s *ListingService) Refresh(ctx context.Context, tech domain.Technician) error {
	scope := tech.Scope()
	invalidated := s.tickets.Invalidate(ctx)

	gen := s.primarySeq.Next()
	coll, err := s.tickets.List(ctx, scope)
	if err != nil {
		return fmt.Errorf("refresh tickets: %w", err)
	}
	if !s.commitPrimary(gen, coll) {
		s.logger.Debug("stale ticket refresh discarded", zap.Uint64("generation", gen))
		return nil
	}

	s.mu.Lock()
	advancedLoaded := s.unrestricted != nil
	s.mu.Unlock()
	if advancedLoaded {
		s.fetchUnrestricted(ctx, scope)
	}

	if s.dispatcher != nil {
		payload := events.TicketsRefreshedPayload{
			Generation:  gen,
			MyTickets:   len(coll.MyTickets),
			NewTickets:  len(coll.NewTickets),
			AllTickets:  len(coll.AllTickets),
			Invalidated: invalidated,
		}
		event := events.New(events.EventTicketsRefreshed, 0, tech.ID, s.clock.Now(), payload)
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("refresh event handler failed", zap.Error(err))
		}
	}
	return nil
}

// LoadMore grows the visible window of tab by one page.
func (s *ListingService) LoadMore(ctx context.Context, tech domain.Technician, tab domain.Tab) (TicketView, error) {
	s.session.LoadMore(tab)
	return s.View(ctx, tech, tab)
}

// Ticket returns one ticket, from the loaded collections when possible.
func (s *ListingService) Ticket(ctx context.Context, id int64) (domain.Ticket, error) {
	s.mu.Lock()
	for _, coll := range []*domain.TicketCollection{s.primary, s.unrestricted} {
		if coll == nil {
			continue
		}
		if t, ok := coll.Find(id); ok {
			s.mu.Unlock()
			return t, nil
		}
	}
	s.mu.Unlock()
	return s.tickets.GetByID(ctx, id)
}

// PlayingTickets lists tickets of the loaded collection whose timer runs or is
// paused for the technician.
func (s *ListingService) PlayingTickets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.primary == nil {
		return nil
	}
	var ids []int64
	for _, t := range s.primary.Union() {
		if t.PlayStatus != domain.PlayStatusNone {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// SearchCustomers returns up to limit directory entries whose name or number
// contains q.
func (s *ListingService) SearchCustomers(ctx context.Context, q string, limit int) ([]domain.Customer, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []domain.Customer{}, nil
	}
	if limit <= 0 || limit > MaxCustomerSuggestions {
		limit = MaxCustomerSuggestions
	}
	all, err := s.tickets.Customers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Customer, 0, limit)
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Number), q) {
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Reset forgets the loaded collections, e.g. after logout.
func (s *ListingService) Reset() {
	s.primarySeq.Next()
	s.advancedSeq.Next()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primary = nil
	s.unrestricted = nil
}

func (s *ListingService) primaryCollection(ctx context.Context, scope domain.Scope) (domain.TicketCollection, bool, error) {
	gen := s.primarySeq.Next()
	coll, err := s.tickets.List(ctx, scope)
	if err == nil {
		s.commitPrimary(gen, coll)
		s.mu.Lock()
		defer s.mu.Unlock()
		return *s.primary, false, nil
	}

	s.mu.Lock()
	last := s.primary
	s.mu.Unlock()
	if last == nil {
		return domain.TicketCollection{}, false, fmt.Errorf("load tickets: %w", err)
	}
	s.logger.Warn("serving last good ticket collection", zap.Error(err))
	return *last, true, nil
}

func (s *ListingService) commitPrimary(gen uint64, coll domain.TicketCollection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.primarySeq.IsCurrent(gen) && s.primary != nil {
		return false
	}
	s.primary = &coll
	return true
}

// loadUnrestricted returns the advanced dataset, fetching it once. A failed
// load leaves the view on the primary partition.
func (s *ListingService) loadUnrestricted(ctx context.Context, scope domain.Scope) *domain.TicketCollection {
	s.mu.Lock()
	loaded := s.unrestricted
	s.mu.Unlock()
	if loaded != nil {
		return loaded
	}
	return s.fetchUnrestricted(ctx, scope)
}

func (s *ListingService) fetchUnrestricted(ctx context.Context, scope domain.Scope) *domain.TicketCollection {
	key := "unrestricted:" + strconv.FormatInt(scope.UserID, 10)
	v, err, _ := s.flight.Do(key, func() (any, error) {
		gen := s.advancedSeq.Next()
		coll, err := s.tickets.ListUnrestricted(ctx, scope)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.advancedSeq.IsCurrent(gen) || s.unrestricted == nil {
			s.unrestricted = &coll
		}
		return s.unrestricted, nil
	})
	if err != nil {
		s.logger.Warn("advanced ticket dataset unavailable", zap.Error(err))
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.unrestricted
	}
	return v.(*domain.TicketCollection)
}

// searchedTicket resolves an all-digit search term that matches no ticket in
// the source by asking the API for that id.
func (s *ListingService) searchedTicket(ctx context.Context, in listing.Input) *domain.Ticket {
	id, ok := ticketIDTerm(in.Filter.SearchTerm)
	if !ok {
		s.session.SetSearched(nil)
		return nil
	}
	for _, t := range listing.Source(in) {
		if t.ID == id {
			return nil
		}
	}
	if prev := s.session.Searched(); prev != nil && prev.ID == id {
		return prev
	}
	t, err := s.Ticket(ctx, id)
	if err != nil {
		if !errors.Is(err, ticketbase.ErrNotFound) {
			s.logger.Warn("ticket lookup by id failed", zap.Int64("ticket_id", id), zap.Error(err))
		}
		s.session.SetSearched(nil)
		return nil
	}
	s.session.SetSearched(&t)
	return &t
}

func ticketIDTerm(term string) (int64, bool) {
	term = strings.TrimSpace(term)
	if term == "" {
		return 0, false
	}
	for _, r := range term {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(term, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
