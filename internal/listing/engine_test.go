package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

func newTestEngine() *Engine {
	return NewEngine(time.UTC, NewSorter("de"))
}

func ids(tickets []domain.Ticket) []int64 {
	out := make([]int64, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.ID)
	}
	return out
}

func threeTickets() []domain.Ticket {
	return []domain.Ticket{
		{ID: 1, Summary: "Printer offline", Priority: "Low", PriorityIndex: 2, Status: "Open", CreatedAt: "01-03-2024 09:00"},
		{ID: 2, Summary: "VPN drops", Priority: "Medium", PriorityIndex: 5, Status: "Open", CreatedAt: "05-03-2024 10:00"},
		{ID: 3, Summary: "Mail server down", Priority: "High", PriorityIndex: 9, Status: "In Progress", CreatedAt: "10-03-2024 11:00"},
	}
}

func TestApplyScenario(t *testing.T) {
	e := newTestEngine()
	f := domain.DefaultFilterState()
	f.SortBy = domain.SortPriorityHigh

	got := e.Apply(Input{Primary: threeTickets(), Filter: f})
	assert.Equal(t, []int64{3, 2, 1}, ids(got))

	f.SearchTerm = "2"
	got = e.Apply(Input{Primary: threeTickets(), Filter: f})
	assert.Equal(t, []int64{2}, ids(got))

	f.SearchTerm = ""
	f.DateFrom = "2030-01-01"
	got = e.Apply(Input{Primary: threeTickets(), Filter: f})
	assert.Empty(t, got)
}

func TestApplyDefaultSortIsDateDescending(t *testing.T) {
	got := newTestEngine().Apply(Input{Primary: threeTickets(), Filter: domain.DefaultFilterState()})
	assert.Equal(t, []int64{3, 2, 1}, ids(got))
}

func TestApplyPredicates(t *testing.T) {
	tickets := []domain.Ticket{
		{ID: 10, Summary: "Laptop", Status: "Open", Priority: "High", Company: domain.Company{Name: "Müller GmbH"}},
		{ID: 11, Description: "", TemplateData: `{"device":"Docking station"}`, Status: "Closed", Priority: "Low"},
		{ID: 12, Summary: "Phone", Status: "open", Priority: "high", Company: domain.Company{Name: "Acme"}},
	}
	e := newTestEngine()

	tests := []struct {
		name   string
		mutate func(*domain.FilterState)
		want   []int64
	}{
		{"search matches company", func(f *domain.FilterState) { f.SearchTerm = "müller" }, []int64{10}},
		{"search matches derived description", func(f *domain.FilterState) { f.SearchTerm = "DOCKING" }, []int64{11}},
		{"status is case-insensitive", func(f *domain.FilterState) { f.Status = "OPEN" }, []int64{10, 12}},
		{"priority exact", func(f *domain.FilterState) { f.Priority = "low" }, []int64{11}},
		{"wildcards", func(f *domain.FilterState) { f.Status, f.Priority = "all", "all" }, []int64{10, 11, 12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := domain.DefaultFilterState()
			f.SortBy = domain.SortIDAsc
			tt.mutate(&f)
			got := e.Apply(Input{Primary: tickets, Filter: f})
			assert.Equal(t, tt.want, ids(got))
			for _, ticket := range got {
				assert.True(t, e.Matches(ticket, f, nil))
			}
		})
	}
}

func TestDateRangeInclusive(t *testing.T) {
	e := newTestEngine()
	tickets := []domain.Ticket{
		{ID: 1, CreatedAt: "15-03-2024 23:59"},
		{ID: 2, CreatedAt: "16-03-2024 00:00"},
		{ID: 3, CreatedAt: "garbage"},
		{ID: 4, CreatedAt: "14-03-2024 23:59"},
	}
	f := domain.DefaultFilterState()
	f.SortBy = domain.SortIDAsc
	f.DateFrom = "2024-03-15"
	f.DateTo = "2024-03-15"

	got := e.Apply(Input{Primary: tickets, Filter: f})
	assert.Equal(t, []int64{1, 3}, ids(got))
}

func TestInvalidDateBoundIsIgnored(t *testing.T) {
	f := domain.DefaultFilterState()
	f.DateFrom = "15.03.2024"
	got := newTestEngine().Apply(Input{Primary: threeTickets(), Filter: f})
	assert.Len(t, got, 3)
}

func TestCustomerFilter(t *testing.T) {
	customers := []domain.Customer{
		{ID: 100, Name: "Acme", Number: "K-100"},
		{ID: 200, Name: "", Number: ""},
	}
	tickets := []domain.Ticket{
		{ID: 1, Company: domain.Company{ID: 100, Name: "Something else"}},
		{ID: 2, Company: domain.Company{Name: "ACME Corp"}},
		{ID: 3, Summary: "Call back k-100 about invoice"},
		{ID: 4, Company: domain.Company{Name: "Globex"}},
	}
	e := newTestEngine()

	t.Run("id or substring match", func(t *testing.T) {
		f := domain.DefaultFilterState()
		f.SortBy = domain.SortIDAsc
		f.CustomerID = 100
		assert.Equal(t, []int64{1, 2, 3}, ids(e.Apply(Input{Primary: tickets, Filter: f, Customers: customers})))
	})

	t.Run("unresolvable id passes everything", func(t *testing.T) {
		f := domain.DefaultFilterState()
		f.SortBy = domain.SortIDAsc
		f.CustomerID = 999
		assert.Equal(t, []int64{1, 2, 3, 4}, ids(e.Apply(Input{Primary: tickets, Filter: f, Customers: customers})))
	})

	t.Run("empty name and number do not match everything", func(t *testing.T) {
		f := domain.DefaultFilterState()
		f.CustomerID = 200
		assert.Empty(t, e.Apply(Input{Primary: tickets, Filter: f, Customers: customers}))
	})
}

func TestSourceSelection(t *testing.T) {
	primary := []domain.Ticket{{ID: 1, Company: domain.Company{ID: 5}}}
	unrestricted := &domain.TicketCollection{
		MyTickets:  []domain.Ticket{{ID: 1, Company: domain.Company{ID: 5}}},
		NewTickets: []domain.Ticket{{ID: 7, Company: domain.Company{ID: 5}}},
		AllTickets: []domain.Ticket{{ID: 7, Company: domain.Company{ID: 5}}, {ID: 8, Company: domain.Company{ID: 6}}},
	}
	customers := []domain.Customer{{ID: 5, Name: "Initech"}}
	e := newTestEngine()

	f := domain.DefaultFilterState()
	f.SortBy = domain.SortIDAsc
	assert.Equal(t, []int64{1}, ids(e.Apply(Input{Primary: primary, Unrestricted: unrestricted, Filter: f})))

	f.CustomerID = 5
	assert.Equal(t, []int64{1, 7}, ids(e.Apply(Input{Primary: primary, Unrestricted: unrestricted, Filter: f, Customers: customers})))

	// Not loaded yet: stay on the primary partition.
	assert.Equal(t, []int64{1}, ids(e.Apply(Input{Primary: primary, Filter: f, Customers: customers})))
}

func TestSearchedTicketInjection(t *testing.T) {
	e := newTestEngine()
	searched := domain.Ticket{ID: 42, Summary: "elsewhere", Status: "Open", Priority: "Low"}

	f := domain.DefaultFilterState()
	f.SearchTerm = "42"
	got := e.Apply(Input{Primary: threeTickets(), Filter: f, Searched: &searched})
	require.NotEmpty(t, got)
	assert.Equal(t, int64(42), got[0].ID)

	f.SearchTerm = ""
	f.Status = "Closed"
	got = e.Apply(Input{Primary: threeTickets(), Filter: f, Searched: &searched})
	assert.Empty(t, got)

	present := threeTickets()[1]
	f = domain.DefaultFilterState()
	got = e.Apply(Input{Primary: threeTickets(), Filter: f, Searched: &present})
	assert.Len(t, got, 3)
}

func TestApplyIsSubsetOfInput(t *testing.T) {
	e := newTestEngine()
	input := append(threeTickets(), threeTickets()[0])
	searched := domain.Ticket{ID: 99, Status: "Open"}
	for _, term := range []string{"", "1", "vpn", "zzz"} {
		f := domain.DefaultFilterState()
		f.SearchTerm = term
		got := e.Apply(Input{Primary: input, Filter: f, Searched: &searched})
		allowed := map[int64]bool{1: true, 2: true, 3: true, 99: true}
		seen := map[int64]bool{}
		for _, ticket := range got {
			assert.True(t, allowed[ticket.ID])
			assert.False(t, seen[ticket.ID], "duplicate id %d", ticket.ID)
			seen[ticket.ID] = true
		}
	}
}

func TestPaginate(t *testing.T) {
	tickets := make([]domain.Ticket, 120)
	for i := range tickets {
		tickets[i].ID = int64(i + 1)
	}
	page := Paginate(tickets, 0)
	assert.Len(t, page.Items, DefaultPageSize)
	assert.True(t, page.HasMore)
	assert.Equal(t, 120, page.Total)

	page = Paginate(tickets, 150)
	assert.Len(t, page.Items, 120)
	assert.False(t, page.HasMore)
}
