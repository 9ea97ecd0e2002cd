// Package session holds the per-process view state: filters, navigation and
// the pagination window of each tab.
package session

import (
	"sync"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/listing"
)

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	pageSize int
	filters  domain.FilterState
	nav      domain.NavState
	searched *domain.Ticket
}

// NewStore returns a store with default filters on the "my" tab.
func NewStore(pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = listing.DefaultPageSize
	}
	s := &Store{pageSize: pageSize, filters: domain.DefaultFilterState()}
	s.nav = s.freshNav(domain.TabMy)
	return s
}

// PageSize is the increment of one "load more".
func (s *Store) PageSize() int { return s.pageSize }

// Filters returns the current filter state.
func (s *Store) Filters() domain.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// UpdateFilters merges patch. When a predicate changed, every tab goes back
// to its first page and the remembered by-id ticket is dropped.
func (s *Store) UpdateFilters(patch domain.FilterPatch) (domain.FilterState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed := s.filters.Merge(patch)
	s.filters = next
	if changed {
		s.resetWindows()
		s.searched = nil
	}
	return next, changed
}

// ResetFilters restores the defaults.
func (s *Store) ResetFilters() domain.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = domain.DefaultFilterState()
	s.resetWindows()
	s.searched = nil
	return s.filters
}

// Nav returns a copy of the navigation state.
func (s *Store) Nav() domain.NavState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := domain.NavState{
		ActiveTab:     s.nav.ActiveTab,
		ScrollOffsets: make(map[domain.Tab]int, len(s.nav.ScrollOffsets)),
		Visible:       make(map[domain.Tab]int, len(s.nav.Visible)),
	}
	for k, v := range s.nav.ScrollOffsets {
		out.ScrollOffsets[k] = v
	}
	for k, v := range s.nav.Visible {
		out.Visible[k] = v
	}
	return out
}

// SetActiveTab switches tabs. Scroll offsets are kept per tab.
func (s *Store) SetActiveTab(tab domain.Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav.ActiveTab = tab
}

// SetScroll remembers the scroll offset of tab.
func (s *Store) SetScroll(tab domain.Tab, offset int) {
	if offset < 0 {
		offset = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav.ScrollOffsets[tab] = offset
}

// LoadMore grows the visible window of tab by one page and returns it.
func (s *Store) LoadMore(tab domain.Tab) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav.Visible[tab] += s.pageSize
	return s.nav.Visible[tab]
}

// Visible returns how many tickets of tab are shown.
func (s *Store) Visible(tab domain.Tab) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v := s.nav.Visible[tab]; v > 0 {
		return v
	}
	return s.pageSize
}

// SetSearched remembers the ticket found by id lookup; nil forgets it.
func (s *Store) SetSearched(t *domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t == nil {
		s.searched = nil
		return
	}
	cp := *t
	s.searched = &cp
}

// Searched returns the remembered by-id ticket, if any.
func (s *Store) Searched() *domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searched == nil {
		return nil
	}
	cp := *s.searched
	return &cp
}

func (s *Store) resetWindows() {
	for _, tab := range domain.Tabs {
		s.nav.Visible[tab] = s.pageSize
		s.nav.ScrollOffsets[tab] = 0
	}
}

func (s *Store) freshNav(active domain.Tab) domain.NavState {
	nav := domain.NavState{
		ActiveTab:     active,
		ScrollOffsets: make(map[domain.Tab]int, len(domain.Tabs)),
		Visible:       make(map[domain.Tab]int, len(domain.Tabs)),
	}
	for _, tab := range domain.Tabs {
		nav.ScrollOffsets[tab] = 0
		nav.Visible[tab] = s.pageSize
	}
	return nav
}
