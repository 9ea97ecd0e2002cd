package ticketbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// LoginResult is the normalized response of POST /login.
type LoginResult struct {
	Token      string
	Technician domain.Technician
}

// PlayerStatus is the server-side timer state of one ticket.
type PlayerStatus struct {
	Status domain.TimerStatus
	Total  time.Duration
}

// TimerAction is the body of the play, pause, resume and stop endpoints.
type TimerAction struct {
	TicketID     int64             `json:"ticket_id"`
	UserID       int64             `json:"user_id"`
	CurrentState domain.ActionCode `json:"current_state"`
}

// Correction is the body of POST /correctWatch.
type Correction struct {
	TicketID int64 `json:"ticket_id"`
	UserID   int64 `json:"user_id"`
	Minutes  int   `json:"minutes"`
}

// HistoryEntry is the body of POST /saveVerlaufApi.
type HistoryEntry struct {
	TicketID    int64  `json:"ticket_id"`
	UserID      int64  `json:"user_id"`
	Description string `json:"description"`
	StatusID    int64  `json:"status_id"`
	Minutes     int    `json:"minutes"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	body := map[string]string{"username": username, "password": password}
	env, raw, err := c.call(ctx, http.MethodPost, "login", nil, body)
	if err != nil {
		return LoginResult{}, err
	}

	var w wireLogin
	if err := decodePayload(env, raw, &w); err != nil {
		return LoginResult{}, fmt.Errorf("%w: login: %v", ErrMalformed, err)
	}
	token := w.Token.String()
	if token == "" {
		return LoginResult{}, fmt.Errorf("%w: login: missing token", ErrMalformed)
	}
	res := LoginResult{Token: token}
	if w.User != nil {
		res.Technician = domain.Technician{
			ID:         firstInt(w.User.ID, w.User.UserID),
			Name:       first(w.User.Name, w.User.Username),
			GroupID:    int64(w.User.GroupID),
			CompanyID:  int64(w.User.CompanyID),
			LocationID: int64(w.User.LocationID),
		}
	}
	return res, nil
}

// Tickets fetches the three-partition collection for scope. unfiltered
// requests the advanced dataset.
func (c *Client) Tickets(ctx context.Context, scope domain.Scope, unfiltered bool) (domain.TicketCollection, error) {
	q := idQuery(
		"user_id", scope.UserID,
		"group_id", scope.GroupID,
		"company_id", scope.CompanyID,
		"location_id", scope.LocationID,
	)
	if unfiltered {
		q.Set("unfiltered", "1")
	}
	env, raw, err := c.call(ctx, http.MethodGet, "getTickets", q, nil)
	if err != nil {
		return domain.TicketCollection{}, err
	}

	var w wireCollection
	if err := decodePayload(env, raw, &w); err != nil {
		return domain.TicketCollection{}, fmt.Errorf("%w: getTickets: %v", ErrMalformed, err)
	}
	var coll domain.TicketCollection
	var dropped [3]int
	coll.MyTickets, dropped[0] = normalizeTickets(w.MyTickets)
	coll.NewTickets, dropped[1] = normalizeTickets(w.NewTickets)
	coll.AllTickets, dropped[2] = normalizeTickets(w.AllTickets)
	if n := dropped[0] + dropped[1] + dropped[2]; n > 0 {
		c.logger.Warn("dropped malformed tickets", zap.Int("count", n), zap.Bool("unfiltered", unfiltered))
	}
	return coll, nil
}

// Ticket fetches one ticket by id.
func (c *Client) Ticket(ctx context.Context, id int64) (domain.Ticket, error) {
	endpoint := "getTicket/" + strconv.FormatInt(id, 10)
	env, raw, err := c.call(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return domain.Ticket{}, err
	}
	payload := env.Data
	if len(payload) == 0 || string(payload) == "null" {
		payload = raw
	}
	// some deployments wrap the ticket once more
	var nested struct {
		Ticket json.RawMessage `json:"ticket"`
	}
	if err := json.Unmarshal(payload, &nested); err == nil && len(nested.Ticket) > 0 {
		payload = nested.Ticket
	}
	t, ok := normalizeTicket(payload)
	if !ok {
		return domain.Ticket{}, &APIError{Endpoint: endpoint, StatusCode: http.StatusNotFound, Message: "ticket not found"}
	}
	return t, nil
}

// Customers fetches the customer directory.
func (c *Client) Customers(ctx context.Context) ([]domain.Customer, error) {
	env, raw, err := c.call(ctx, http.MethodGet, "getCustomers", nil, nil)
	if err != nil {
		return nil, err
	}
	var items []wireCustomer
	if err := decodePayload(env, raw, &items); err != nil {
		var wrapped struct {
			Customers []wireCustomer `json:"customers"`
		}
		if err2 := decodePayload(env, raw, &wrapped); err2 != nil {
			return nil, fmt.Errorf("%w: getCustomers: %v", ErrMalformed, err)
		}
		items = wrapped.Customers
	}
	out := make([]domain.Customer, 0, len(items))
	for _, w := range items {
		if cust, ok := normalizeCustomer(w); ok {
			out = append(out, cust)
		}
	}
	return out, nil
}

// PlayerStatus fetches the server-side timer for key. The total arrives in
// minutes.
func (c *Client) PlayerStatus(ctx context.Context, key domain.TimerKey) (PlayerStatus, error) {
	q := idQuery("ticket_id", key.TicketID, "user_id", key.UserID)
	env, raw, err := c.call(ctx, http.MethodGet, "getPlayerStatus", q, nil)
	if err != nil {
		return PlayerStatus{}, err
	}
	var w wirePlayerStatus
	if err := decodePayload(env, raw, &w); err != nil {
		return PlayerStatus{}, fmt.Errorf("%w: getPlayerStatus: %v", ErrMalformed, err)
	}
	total := time.Duration(float64(w.TotalTime) * float64(time.Minute))
	if total < 0 {
		total = 0
	}
	return PlayerStatus{Status: timerStatus(w.PlayStatus.String()), Total: total}, nil
}

// Play starts the timer.
func (c *Client) Play(ctx context.Context, a TimerAction) error {
	return c.post(ctx, "play", a)
}

// Pause pauses the timer.
func (c *Client) Pause(ctx context.Context, a TimerAction) error {
	return c.post(ctx, "pause", a)
}

// Resume resumes a paused timer.
func (c *Client) Resume(ctx context.Context, a TimerAction) error {
	return c.post(ctx, "resume", a)
}

// Stop stops the timer.
func (c *Client) Stop(ctx context.Context, a TimerAction) error {
	return c.post(ctx, "stop", a)
}

// CorrectWatch overrides the tracked minutes.
func (c *Client) CorrectWatch(ctx context.Context, corr Correction) error {
	return c.post(ctx, "correctWatch", corr)
}

// SaveHistory writes the history entry that closes a timer session.
func (c *Client) SaveHistory(ctx context.Context, h HistoryEntry) error {
	return c.post(ctx, "saveVerlaufApi", h)
}

func (c *Client) post(ctx context.Context, endpoint string, body any) error {
	_, _, err := c.call(ctx, http.MethodPost, endpoint, nil, body)
	return err
}

// decodePayload reads the envelope's data member, or the whole body when the
// endpoint answers with a flat object.
func decodePayload(env envelope, raw []byte, dst any) error {
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, dst); err == nil {
			return nil
		}
	}
	return json.Unmarshal(raw, dst)
}
