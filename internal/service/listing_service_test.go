package service

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/clock"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/events"
	"github.com/spec-kit/ticket-desk/internal/listing"
	"github.com/spec-kit/ticket-desk/internal/repository"
	"github.com/spec-kit/ticket-desk/internal/session"
	"github.com/spec-kit/ticket-desk/internal/ticketbase/ticketbasetest"
)

var tech = domain.Technician{ID: 7, Name: "Test Technician", GroupID: 3}

type listingFixture struct {
	svc     *ListingService
	fake    *ticketbasetest.Server
	session *session.Store
	clock   *clock.FakeClock
	events  *[]events.Event
}

func newListingFixture(t *testing.T, pageSize int) listingFixture {
	t.Helper()
	fake := ticketbasetest.New(t)
	fake.SetTickets(ticketbasetest.Collection{
		My: []ticketbasetest.Ticket{
			ticketbasetest.NewTicket(3, "summary", "Drucker", "status", "Offen", "priority", "Hoch", "created_at", "03-03-2024 10:00", "company", map[string]any{"id": 1, "name": "Acme"}),
			ticketbasetest.NewTicket(2, "summary", "VPN", "status", "Offen", "priority", "Normal", "created_at", "02-03-2024 10:00", "company", map[string]any{"id": 2, "name": "Globex"}),
			ticketbasetest.NewTicket(1, "summary", "Mail", "status", "Erledigt", "priority", "Normal", "created_at", "01-03-2024 10:00", "company", map[string]any{"id": 1, "name": "Acme"}),
		},
		New: []ticketbasetest.Ticket{
			ticketbasetest.NewTicket(4, "summary", "Laptop", "status", "Neu", "created_at", "04-03-2024 10:00", "play_status", "1"),
		},
	})
	fake.SetUnfiltered(ticketbasetest.Collection{
		All: []ticketbasetest.Ticket{
			ticketbasetest.NewTicket(10, "summary", "Server", "company", map[string]any{"id": 1, "name": "Acme"}, "created_at", "05-03-2024 10:00"),
			ticketbasetest.NewTicket(11, "summary", "Backup", "company", map[string]any{"id": 2, "name": "Globex"}),
		},
	})
	fake.SetCustomers(
		map[string]any{"id": 1, "name": "Acme", "number": "K-1"},
		map[string]any{"id": 2, "name": "Globex", "number": "K-2"},
	)

	fc := clock.Fake(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	c := cache.New(cache.NewMemoryStore(), cache.Options{Clock: fc})
	store := session.NewStore(pageSize)
	dispatcher := events.NewInMemoryDispatcher()
	seen := &[]events.Event{}
	dispatcher.Subscribe(events.EventTicketsRefreshed, func(_ context.Context, e events.Event) error {
		*seen = append(*seen, e)
		return nil
	})

	svc := NewListingService(ListingDependencies{
		TicketRepo: repository.NewTicketRepository(fake.Client(), c, nil),
		Session:    store,
		Engine:     listing.NewEngine(time.UTC, listing.NewSorter("de")),
		Dispatcher: dispatcher,
		Clock:      fc,
	})
	return listingFixture{svc: svc, fake: fake, session: store, clock: fc, events: seen}
}

func ticketIDs(ts []domain.Ticket) []int64 {
	out := make([]int64, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func strRef(s string) *string { return &s }

func TestViewAppliesFiltersAndCounts(t *testing.T) {
	f := newListingFixture(t, 50)
	ctx := context.Background()

	view, err := f.svc.View(ctx, tech, domain.TabMy)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, ticketIDs(view.Page.Items))
	assert.Equal(t, map[domain.Tab]int{domain.TabMy: 3, domain.TabNew: 1, domain.TabAll: 0}, view.Counts)
	assert.False(t, view.Stale)

	f.session.UpdateFilters(domain.FilterPatch{Status: strRef("Offen")})
	view, err = f.svc.View(ctx, tech, domain.TabMy)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, ticketIDs(view.Page.Items))
	assert.Equal(t, domain.TabMy, f.session.Nav().ActiveTab)

	assert.Len(t, f.fake.Calls("getTickets"), 1, "second view is served from cache")
}

func TestViewPaginatesAndLoadsMore(t *testing.T) {
	f := newListingFixture(t, 2)
	ctx := context.Background()

	view, err := f.svc.View(ctx, tech, domain.TabMy)
	require.NoError(t, err)
	assert.Len(t, view.Page.Items, 2)
	assert.True(t, view.Page.HasMore)
	assert.Equal(t, 3, view.Page.Total)

	view, err = f.svc.LoadMore(ctx, tech, domain.TabMy)
	require.NoError(t, err)
	assert.Len(t, view.Page.Items, 3)
	assert.False(t, view.Page.HasMore)
}

func TestCustomerScopedViewUsesUnrestrictedDataset(t *testing.T) {
	f := newListingFixture(t, 50)
	ctx := context.Background()
	customer := int64(1)
	f.session.UpdateFilters(domain.FilterPatch{CustomerID: &customer})

	view, err := f.svc.View(ctx, tech, domain.TabMy)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, ticketIDs(view.Page.Items))

	_, err = f.svc.View(ctx, tech, domain.TabAll)
	require.NoError(t, err)
	unfiltered := 0
	for _, c := range f.fake.Calls("getTickets") {
		if c.Query["unfiltered"] == "1" {
			unfiltered++
		}
	}
	assert.Equal(t, 1, unfiltered, "advanced dataset is loaded once")
}

func TestUnknownCustomerLeavesListUnfiltered(t *testing.T) {
	f := newListingFixture(t, 50)
	customer := int64(999)
	f.session.UpdateFilters(domain.FilterPatch{CustomerID: &customer})

	view, err := f.svc.View(context.Background(), tech, domain.TabMy)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, ticketIDs(view.Page.Items), "unrestricted union, undated tickets last")
}

func TestDigitSearchInjectsTicketByID(t *testing.T) {
	f := newListingFixture(t, 50)
	ctx := context.Background()
	f.fake.AddTicket(ticketbasetest.NewTicket(77, "summary", "Firewall", "status", "Offen"))

	f.session.UpdateFilters(domain.FilterPatch{SearchTerm: strRef("77")})
	view, err := f.svc.View(ctx, tech, domain.TabMy)
	require.NoError(t, err)
	assert.Equal(t, []int64{77}, ticketIDs(view.Page.Items))
	require.NotNil(t, f.session.Searched())

	_, err = f.svc.View(ctx, tech, domain.TabMy)
	require.NoError(t, err)
	assert.Len(t, f.fake.Calls("getTicket"), 1, "remembered ticket is not looked up again")

	f.session.UpdateFilters(domain.FilterPatch{SearchTerm: strRef("2")})
	view, err = f.svc.View(ctx, tech, domain.TabMy)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ticketIDs(view.Page.Items), "id already in the list needs no lookup")
	assert.Len(t, f.fake.Calls("getTicket"), 1)
}

func TestDigitSearchUnknownIDInjectsNothing(t *testing.T) {
	f := newListingFixture(t, 50)
	f.session.UpdateFilters(domain.FilterPatch{SearchTerm: strRef("555")})

	view, err := f.svc.View(context.Background(), tech, domain.TabMy)
	require.NoError(t, err)
	assert.Empty(t, view.Page.Items)
	assert.Nil(t, f.session.Searched())
}

func TestViewServesLastGoodCollection(t *testing.T) {
	f := newListingFixture(t, 50)
	ctx := context.Background()

	_, err := f.svc.View(ctx, tech, domain.TabMy)
	require.NoError(t, err)

	f.clock.Advance(repository.ListTTL + time.Second)
	f.fake.FailWith("getTickets", http.StatusInternalServerError)
	view, err := f.svc.View(ctx, tech, domain.TabMy)
	require.NoError(t, err)
	assert.True(t, view.Stale)
	assert.Equal(t, []int64{3, 2, 1}, ticketIDs(view.Page.Items))
}

func TestViewFailsWithoutAnyCollection(t *testing.T) {
	f := newListingFixture(t, 50)
	f.fake.FailWith("getTickets", http.StatusInternalServerError)

	_, err := f.svc.View(context.Background(), tech, domain.TabMy)
	assert.Error(t, err)
}

func TestRefreshRefetchesAndPublishes(t *testing.T) {
	f := newListingFixture(t, 50)
	ctx := context.Background()

	_, err := f.svc.View(ctx, tech, domain.TabMy)
	require.NoError(t, err)
	f.fake.SetTickets(ticketbasetest.Collection{My: []ticketbasetest.Ticket{ticketbasetest.NewTicket(20)}})

	require.NoError(t, f.svc.Refresh(ctx, tech))
	view, err := f.svc.View(ctx, tech, domain.TabMy)
	require.NoError(t, err)
	assert.Equal(t, []int64{20}, ticketIDs(view.Page.Items))

	require.Len(t, *f.events, 1)
	payload, ok := (*f.events)[0].Payload.(events.TicketsRefreshedPayload)
	require.True(t, ok)
	assert.Equal(t, 1, payload.MyTickets)
	assert.Equal(t, 1, payload.Invalidated)
}

func TestStaleGenerationIsDiscarded(t *testing.T) {
	f := newListingFixture(t, 50)
	older := f.svc.primarySeq.Next()
	newer := f.svc.primarySeq.Next()

	assert.True(t, f.svc.commitPrimary(newer, domain.TicketCollection{MyTickets: []domain.Ticket{{ID: 2}}}))
	assert.False(t, f.svc.commitPrimary(older, domain.TicketCollection{MyTickets: []domain.Ticket{{ID: 1}}}))
	assert.Equal(t, int64(2), f.svc.primary.MyTickets[0].ID)
}

func TestSequencer(t *testing.T) {
	var s Sequencer
	a := s.Next()
	b := s.Next()
	assert.Less(t, a, b)
	assert.False(t, s.IsCurrent(a))
	assert.True(t, s.IsCurrent(b))
	assert.Equal(t, b, s.Current())
}

func TestTicketPrefersLoadedCollections(t *testing.T) {
	f := newListingFixture(t, 50)
	ctx := context.Background()
	_, err := f.svc.View(ctx, tech, domain.TabMy)
	require.NoError(t, err)

	ticket, err := f.svc.Ticket(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "Laptop", ticket.Summary)
	assert.Empty(t, f.fake.Calls("getTicket"))
	assert.Equal(t, []int64{4}, f.svc.PlayingTickets())
}

func TestSearchCustomers(t *testing.T) {
	f := newListingFixture(t, 50)
	ctx := context.Background()
	many := make([]map[string]any, 0, 15)
	for i := 1; i <= 15; i++ {
		many = append(many, map[string]any{"id": i, "name": fmt.Sprintf("Kunde %02d", i)})
	}
	f.fake.SetCustomers(many...)

	got, err := f.svc.SearchCustomers(ctx, "kunde", 0)
	require.NoError(t, err)
	assert.Len(t, got, MaxCustomerSuggestions)

	got, err = f.svc.SearchCustomers(ctx, "12", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Kunde 12", got[0].Name)

	got, err = f.svc.SearchCustomers(ctx, " ", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
