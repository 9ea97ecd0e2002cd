package domain

// FilterAll is the wildcard value for status and priority filters.
const FilterAll = "all"

// SortKey selects the ordering of a ticket list.
type SortKey string

const (
	SortDateDesc     SortKey = "date-desc"
	SortDateAsc      SortKey = "date-asc"
	SortPriorityHigh SortKey = "priority-high"
	SortPriorityLow  SortKey = "priority-low"
	SortIDDesc       SortKey = "id-desc"
	SortIDAsc        SortKey = "id-asc"
	SortCompanyAsc   SortKey = "company-asc"
	SortCompanyDesc  SortKey = "company-desc"
	SortStatusAsc    SortKey = "status-asc"
	SortStatusDesc   SortKey = "status-desc"
)

// Normalize maps unknown keys to the default date-desc ordering.
func (k SortKey) Normalize() SortKey {
	switch k {
	case SortDateDesc, SortDateAsc, SortPriorityHigh, SortPriorityLow, SortIDDesc, SortIDAsc,
		SortCompanyAsc, SortCompanyDesc, SortStatusAsc, SortStatusDesc:
		return k
	}
	return SortDateDesc
}

// FilterState is the list filter value object.
type FilterState struct {
	SearchTerm     string  `json:"search_term"`
	Status         string  `json:"status"`
	Priority       string  `json:"priority"`
	CustomerID     int64   `json:"customer_id"`
	CustomerSearch string  `json:"customer_search"`
	DateFrom       string  `json:"date_from"`
	DateTo         string  `json:"date_to"`
	ShowAdvanced   bool    `json:"show_advanced"`
	SortBy         SortKey `json:"sort_by"`
}

// DefaultFilterState returns the state a fresh session starts with.
func DefaultFilterState() FilterState {
	return FilterState{
		Status:   FilterAll,
		Priority: FilterAll,
		SortBy:   SortDateDesc,
	}
}

// FilterPatch carries the fields to change; nil fields are left alone.
type FilterPatch struct {
	SearchTerm     *string  `json:"search_term,omitempty"`
	Status         *string  `json:"status,omitempty"`
	Priority       *string  `json:"priority,omitempty"`
	CustomerID     *int64   `json:"customer_id,omitempty"`
	CustomerSearch *string  `json:"customer_search,omitempty"`
	DateFrom       *string  `json:"date_from,omitempty"`
	DateTo         *string  `json:"date_to,omitempty"`
	ShowAdvanced   *bool    `json:"show_advanced,omitempty"`
	SortBy         *SortKey `json:"sort_by,omitempty"`
}

// Merge applies patch and reports whether any predicate changed. Sort key,
// customer search text and the advanced flag do not count as predicates.
func (f FilterState) Merge(patch FilterPatch) (FilterState, bool) {
	next := f
	if patch.SearchTerm != nil {
		next.SearchTerm = *patch.SearchTerm
	}
	if patch.Status != nil {
		next.Status = wildcardIfEmpty(*patch.Status)
	}
	if patch.Priority != nil {
		next.Priority = wildcardIfEmpty(*patch.Priority)
	}
	if patch.CustomerID != nil {
		next.CustomerID = *patch.CustomerID
	}
	if patch.CustomerSearch != nil {
		next.CustomerSearch = *patch.CustomerSearch
	}
	if patch.DateFrom != nil {
		next.DateFrom = *patch.DateFrom
	}
	if patch.DateTo != nil {
		next.DateTo = *patch.DateTo
	}
	if patch.ShowAdvanced != nil {
		next.ShowAdvanced = *patch.ShowAdvanced
	}
	if patch.SortBy != nil {
		next.SortBy = patch.SortBy.Normalize()
	}
	return next, !f.samePredicates(next)
}

// CustomerScoped reports whether a customer filter is active.
func (f FilterState) CustomerScoped() bool {
	return f.CustomerID != 0
}

func (f FilterState) samePredicates(o FilterState) bool {
	return f.SearchTerm == o.SearchTerm &&
		f.Status == o.Status &&
		f.Priority == o.Priority &&
		f.CustomerID == o.CustomerID &&
		f.DateFrom == o.DateFrom &&
		f.DateTo == o.DateTo
}

func wildcardIfEmpty(v string) string {
	if v == "" {
		return FilterAll
	}
	return v
}

// NavState remembers the active tab and per-tab scroll and page window.
type NavState struct {
	ActiveTab     Tab         `json:"active_tab"`
	ScrollOffsets map[Tab]int `json:"scroll_offsets"`
	Visible       map[Tab]int `json:"visible"`
}
