package listing

import (
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// DefaultLocale is used for collation when none is configured.
const DefaultLocale = "de"

// Sorter orders tickets by a SortKey. Text keys use locale-aware collation.
type Sorter struct {
	tag language.Tag
	loc *time.Location
}

// NewSorter builds a sorter for a BCP 47 locale such as "de" or "en-US".
func NewSorter(locale string) *Sorter {
	if locale == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.German
	}
	return &Sorter{tag: tag, loc: time.Local}
}

// WithLocation returns a copy of s that parses creation dates in loc.
func (s *Sorter) WithLocation(loc *time.Location) *Sorter {
	cp := *s
	if loc != nil {
		cp.loc = loc
	}
	return &cp
}

// Sort returns a stably sorted copy of tickets. Priority keys compare the
// numeric priority index, not the label.
func (s *Sorter) Sort(tickets []domain.Ticket, key domain.SortKey) []domain.Ticket {
	out := make([]domain.Ticket, len(tickets))
	copy(out, tickets)

	var less func(a, b domain.Ticket) bool
	switch key.Normalize() {
	case domain.SortDateAsc:
		created := s.createdTimes(out)
		less = func(a, b domain.Ticket) bool { return created[a.ID].Before(created[b.ID]) }
	case domain.SortPriorityHigh:
		less = func(a, b domain.Ticket) bool { return a.PriorityIndex > b.PriorityIndex }
	case domain.SortPriorityLow:
		less = func(a, b domain.Ticket) bool { return a.PriorityIndex < b.PriorityIndex }
	case domain.SortIDAsc:
		less = func(a, b domain.Ticket) bool { return a.ID < b.ID }
	case domain.SortIDDesc:
		less = func(a, b domain.Ticket) bool { return a.ID > b.ID }
	case domain.SortCompanyAsc, domain.SortCompanyDesc:
		col := collate.New(s.tag, collate.IgnoreCase)
		desc := key == domain.SortCompanyDesc
		less = func(a, b domain.Ticket) bool {
			c := col.CompareString(a.Company.Name, b.Company.Name)
			if desc {
				return c > 0
			}
			return c < 0
		}
	case domain.SortStatusAsc, domain.SortStatusDesc:
		col := collate.New(s.tag, collate.IgnoreCase)
		desc := key == domain.SortStatusDesc
		less = func(a, b domain.Ticket) bool {
			c := col.CompareString(a.Status, b.Status)
			if desc {
				return c > 0
			}
			return c < 0
		}
	default:
		created := s.createdTimes(out)
		less = func(a, b domain.Ticket) bool { return created[a.ID].After(created[b.ID]) }
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// createdTimes parses every creation date once. Unparseable dates sort as the
// zero time.
func (s *Sorter) createdTimes(tickets []domain.Ticket) map[int64]time.Time {
	created := make(map[int64]time.Time, len(tickets))
	for _, t := range tickets {
		ts, _ := t.Created(s.loc)
		created[t.ID] = ts
	}
	return created
}
