package domain

import "fmt"

// Tab identifies one partition of the ticket list.
type Tab string

const (
	TabMy  Tab = "my"
	TabNew Tab = "new"
	TabAll Tab = "all"
)

// Tabs lists every tab in display order.
var Tabs = []Tab{TabMy, TabNew, TabAll}

// ParseTab validates a tab name.
func ParseTab(value string) (Tab, error) {
	switch Tab(value) {
	case TabMy, TabNew, TabAll:
		return Tab(value), nil
	case "":
		return TabMy, nil
	}
	return "", fmt.Errorf("unknown tab %q", value)
}

// TicketCollection is the three-partition ticket list returned by the backend.
type TicketCollection struct {
	MyTickets  []Ticket `json:"my_tickets"`
	NewTickets []Ticket `json:"new_tickets"`
	AllTickets []Ticket `json:"all_tickets"`
}

// Partition returns the tickets shown on tab.
func (c TicketCollection) Partition(tab Tab) []Ticket {
	switch tab {
	case TabNew:
		return c.NewTickets
	case TabAll:
		return c.AllTickets
	default:
		return c.MyTickets
	}
}

// Union concatenates all partitions, keeping the first ticket seen per id.
func (c TicketCollection) Union() []Ticket {
	total := len(c.MyTickets) + len(c.NewTickets) + len(c.AllTickets)
	seen := make(map[int64]struct{}, total)
	out := make([]Ticket, 0, total)
	for _, part := range [][]Ticket{c.MyTickets, c.NewTickets, c.AllTickets} {
		for _, t := range part {
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Find looks a ticket up by id across all partitions.
func (c TicketCollection) Find(id int64) (Ticket, bool) {
	for _, part := range [][]Ticket{c.MyTickets, c.NewTickets, c.AllTickets} {
		for _, t := range part {
			if t.ID == id {
				return t, true
			}
		}
	}
	return Ticket{}, false
}

// Customer is an entry of the customer directory.
type Customer struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number,omitempty"`
}
