package dto

import (
	"github.com/spec-kit/ticket-desk/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TechnicianResponse describes the logged-in technician.
type TechnicianResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	GroupID    int64  `json:"group_id"`
	CompanyID  int64  `json:"company_id"`
	LocationID int64  `json:"location_id"`
	ExpiresAt  string `json:"expires_at,omitempty"`
}

// CompanyResponse is the customer a ticket belongs to.
type CompanyResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number,omitempty"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// TicketSummary is one row of a ticket list.
type TicketSummary struct {
	ID           int64             `json:"id"`
	Summary      string            `json:"summary"`
	Status       string            `json:"status"`
	Priority     string            `json:"priority"`
	Severity     domain.Severity   `json:"severity"`
	Company      CompanyResponse   `json:"company"`
	Assignee     string            `json:"assignee,omitempty"`
	CreatedAt    string            `json:"created_at"`
	MessageCount int               `json:"message_count"`
	PlayStatus   domain.PlayStatus `json:"play_status,omitempty"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description  string   `json:"description"`
	StatusID     int64    `json:"status_id"`
	Creator      string   `json:"creator,omitempty"`
	ContactName  string   `json:"contact_name,omitempty"`
	ContactPhone string   `json:"contact_phone,omitempty"`
	StartDate    string   `json:"start_date,omitempty"`
	Attachments  []string `json:"attachments"`
}

// TicketListResponse is one rendered tab.
type TicketListResponse struct {
	Tab     domain.Tab         `json:"tab"`
	Items   []TicketSummary    `json:"items"`
	Total   int                `json:"total"`
	Visible int                `json:"visible"`
	HasMore bool               `json:"has_more"`
	Counts  map[domain.Tab]int `json:"counts"`
	Filters domain.FilterState `json:"filters"`
	Stale   bool               `json:"stale,omitempty"`
}

// NavRequest updates the remembered tab and scroll position.
type NavRequest struct {
	ActiveTab domain.Tab `json:"active_tab"`
	Scroll    *int       `json:"scroll"`
}

// CustomerResponse is one autocomplete suggestion.
type CustomerResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number,omitempty"`
}

// TimerResponse is the state of one ticket timer.
type TimerResponse struct {
	TicketID   int64              `json:"ticket_id"`
	Status     domain.TimerStatus `json:"status"`
	LastAction domain.ActionCode  `json:"last_action"`
	ElapsedMS  int64              `json:"elapsed_ms"`
	Minutes    int                `json:"minutes"`
	Display    string             `json:"display"`
}

// FinishTimerRequest books the tracked time.
type FinishTimerRequest struct {
	Description string `json:"description"`
	StatusID    int64  `json:"status_id"`
	Minutes     *int   `json:"minutes"`
}
