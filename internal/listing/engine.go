// Package listing filters, sorts, merges and paginates ticket lists on the
// client. Every function here is pure.
package listing

import (
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// Input bundles everything a list view is computed from.
type Input struct {
	// Primary is the active tab's partition.
	Primary []domain.Ticket
	// Unrestricted is the advanced search dataset, nil until loaded.
	Unrestricted *domain.TicketCollection
	Filter       domain.FilterState
	// Searched is a ticket resolved by a direct id lookup.
	Searched  *domain.Ticket
	Customers []domain.Customer
}

// Engine applies filters and ordering for one locale and time zone.
type Engine struct {
	loc    *time.Location
	sorter *Sorter
}

// NewEngine builds an engine. A nil location means time.Local.
func NewEngine(loc *time.Location, sorter *Sorter) *Engine {
	if loc == nil {
		loc = time.Local
	}
	if sorter == nil {
		sorter = NewSorter("")
	}
	return &Engine{loc: loc, sorter: sorter.WithLocation(loc)}
}

// Source picks the ticket set to filter: the union of the unrestricted dataset
// for customer-scoped searches once it is loaded, the primary partition otherwise.
func Source(in Input) []domain.Ticket {
	if in.Filter.CustomerScoped() && in.Unrestricted != nil {
		return in.Unrestricted.Union()
	}
	return in.Primary
}

// Apply returns the filtered, deduplicated and ordered tickets. A searched
// ticket missing from the result is placed first when its status and priority
// still match.
func (e *Engine) Apply(in Input) []domain.Ticket {
	pred := e.compile(in.Filter, in.Customers)

	src := Source(in)
	seen := make(map[int64]struct{}, len(src))
	out := make([]domain.Ticket, 0, len(src))
	for _, t := range src {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		if !pred.match(t) {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}

	out = e.sorter.Sort(out, in.Filter.SortBy)

	if s := in.Searched; s != nil {
		if _, present := seen[s.ID]; !present && pred.matchStatus(*s) && pred.matchPriority(*s) {
			out = append([]domain.Ticket{*s}, out...)
		}
	}
	return out
}

// Matches reports whether t satisfies every active predicate of f.
func (e *Engine) Matches(t domain.Ticket, f domain.FilterState, customers []domain.Customer) bool {
	return e.compile(f, customers).match(t)
}

type predicates struct {
	term     string
	status   string
	priority string

	customerID     int64
	customerName   string
	customerNumber string
	customerActive bool

	from, to       time.Time
	hasFrom, hasTo bool

	loc *time.Location
}

func (e *Engine) compile(f domain.FilterState, customers []domain.Customer) predicates {
	p := predicates{
		term:     strings.ToLower(strings.TrimSpace(f.SearchTerm)),
		status:   strings.ToLower(strings.TrimSpace(f.Status)),
		priority: strings.ToLower(strings.TrimSpace(f.Priority)),
		loc:      e.loc,
	}
	if f.CustomerID != 0 {
		// An id missing from the directory leaves the list unfiltered by customer.
		for _, c := range customers {
			if c.ID == f.CustomerID {
				p.customerActive = true
				p.customerID = c.ID
				p.customerName = strings.ToLower(strings.TrimSpace(c.Name))
				p.customerNumber = strings.ToLower(strings.TrimSpace(c.Number))
				break
			}
		}
	}
	if from, ok := domain.ParseDay(f.DateFrom, e.loc); ok {
		p.from, p.hasFrom = from, true
	}
	if to, ok := domain.ParseDay(f.DateTo, e.loc); ok {
		p.to, p.hasTo = domain.EndOfDay(to), true
	}
	return p
}

func (p predicates) match(t domain.Ticket) bool {
	return p.matchSearch(t) &&
		p.matchStatus(t) &&
		p.matchPriority(t) &&
		p.matchCustomer(t) &&
		p.matchDate(t)
}

func (p predicates) matchSearch(t domain.Ticket) bool {
	if p.term == "" {
		return true
	}
	return containsFold(t.Summary, p.term) ||
		containsFold(t.EffectiveDescription(), p.term) ||
		containsFold(t.Company.Name, p.term) ||
		strings.Contains(strconv.FormatInt(t.ID, 10), p.term)
}

func (p predicates) matchStatus(t domain.Ticket) bool {
	return p.status == "" || p.status == domain.FilterAll || strings.EqualFold(t.Status, p.status)
}

func (p predicates) matchPriority(t domain.Ticket) bool {
	return p.priority == "" || p.priority == domain.FilterAll || strings.EqualFold(t.Priority, p.priority)
}

// matchCustomer matches on company id, or on a substring of the customer name
// or number because company linkage on tickets is not always populated.
func (p predicates) matchCustomer(t domain.Ticket) bool {
	if !p.customerActive {
		return true
	}
	if t.Company.ID != 0 && t.Company.ID == p.customerID {
		return true
	}
	fields := []string{t.Company.Name, t.Company.Number, t.Summary, t.EffectiveDescription()}
	for _, needle := range []string{p.customerName, p.customerNumber} {
		if needle == "" {
			continue
		}
		for _, field := range fields {
			if containsFold(field, needle) {
				return true
			}
		}
	}
	return false
}

// matchDate lets tickets with unparseable timestamps through.
func (p predicates) matchDate(t domain.Ticket) bool {
	if !p.hasFrom && !p.hasTo {
		return true
	}
	created, ok := t.Created(p.loc)
	if !ok {
		return true
	}
	if p.hasFrom && created.Before(p.from) {
		return false
	}
	if p.hasTo && created.After(p.to) {
		return false
	}
	return true
}

// containsFold reports whether lowerNeedle occurs in s, ignoring case.
func containsFold(s, lowerNeedle string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), lowerNeedle)
}
