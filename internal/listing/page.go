package listing

import "github.com/spec-kit/ticket-desk/internal/domain"

// DefaultPageSize is the initial visible window per tab and the "load more" step.
const DefaultPageSize = 50

// Page is a truncated view over a result list.
type Page struct {
	Items   []domain.Ticket
	Total   int
	Visible int
	HasMore bool
}

// Paginate keeps the first visible tickets. A non-positive window uses the
// default page size.
func Paginate(tickets []domain.Ticket, visible int) Page {
	if visible <= 0 {
		visible = DefaultPageSize
	}
	total := len(tickets)
	n := visible
	if n > total {
		n = total
	}
	return Page{
		Items:   tickets[:n],
		Total:   total,
		Visible: visible,
		HasMore: total > visible,
	}
}
