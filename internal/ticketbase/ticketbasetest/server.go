// Package ticketbasetest provides an in-memory fake of the remote ticketing
// API for tests.
package ticketbasetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/spec-kit/ticket-desk/internal/ticketbase"
)

// Token is the bearer token the fake hands out on login.
const Token = "test-token"

// Ticket is a wire ticket object.
type Ticket map[string]any

// NewTicket builds a wire ticket with the given id plus key/value pairs.
func NewTicket(id int64, kv ...any) Ticket {
	t := Ticket{"id": id}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			t[k] = kv[i+1]
		}
	}
	return t
}

// Collection is a wire ticket collection.
type Collection struct {
	My  []Ticket
	New []Ticket
	All []Ticket
}

// Call is one request received by the fake.
type Call struct {
	Method string
	Path   string
	Query  map[string]string
	Body   map[string]any
}

type timerRecord struct {
	status  string
	minutes float64
}

type timerKey struct{ ticket, user string }

// Server fakes the ticketing API.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	password    string
	user        map[string]any
	collection  Collection
	unfiltered  Collection
	details     map[int64]Ticket
	customers   []map[string]any
	timers      map[timerKey]*timerRecord
	statusFault map[string]int
	exists      map[string]bool
	apiErrors   map[string]string
	calls       []Call
}

// New starts a fake server that is closed with the test.
func New(tb testing.TB) *Server {
	s := &Server{
		password:    "secret",
		user:        map[string]any{"id": 7, "name": "Test Technician", "group_id": 3, "company_id": 1, "location_id": 2},
		details:     map[int64]Ticket{},
		timers:      map[timerKey]*timerRecord{},
		statusFault: map[string]int{},
		exists:      map[string]bool{},
		apiErrors:   map[string]string{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	tb.Cleanup(s.Close)
	return s
}

// Client returns a ticketbase client pointed at the fake.
func (s *Server) Client() *ticketbase.Client {
	return ticketbase.NewClient(ticketbase.Options{
		BaseURL: s.URL,
		Token:   func() string { return Token },
	})
}

// SetUser replaces the login user object.
func (s *Server) SetUser(user map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// SetTickets replaces the scoped collection.
func (s *Server) SetTickets(c Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection = c
}

// SetUnfiltered replaces the unfiltered collection.
func (s *Server) SetUnfiltered(c Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unfiltered = c
}

// AddTicket makes a ticket available to GET /getTicket/{id}.
func (s *Server) AddTicket(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details[ticketID(t)] = t
}

// SetCustomers replaces the customer directory.
func (s *Server) SetCustomers(customers ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = customers
}

// SetPlayer sets the server-side timer of a ticket. status uses the backend
// codes: "1" playing, "2" paused, "3" resumed, "" stopped.
func (s *Server) SetPlayer(ticketID, userID int64, status string, minutes float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := timerKey{strconv.FormatInt(ticketID, 10), strconv.FormatInt(userID, 10)}
	if status == "" {
		delete(s.timers, key)
		return
	}
	s.timers[key] = &timerRecord{status: status, minutes: minutes}
}

// FailWith makes endpoint answer with an HTTP status and no body.
func (s *Server) FailWith(endpoint string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusFault[endpoint] = status
}

// RespondExists makes endpoint answer with the "exists" envelope.
func (s *Server) RespondExists(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists[endpoint] = true
}

// RespondError makes endpoint answer with the "error" envelope.
func (s *Server) RespondError(endpoint, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiErrors[endpoint] = message
}

// Heal removes every injected failure for endpoint.
func (s *Server) Heal(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statusFault, endpoint)
	delete(s.exists, endpoint)
	delete(s.apiErrors, endpoint)
}

// Calls returns the requests received for endpoint, in order. An empty
// endpoint returns all of them.
func (s *Server) Calls(endpoint string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if endpoint == "" || endpointOf(c.Path) == endpoint {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	call := Call{Method: r.Method, Path: r.URL.Path, Query: map[string]string{}}
	for k := range r.URL.Query() {
		call.Query[k] = r.URL.Query().Get(k)
	}
	if r.Body != nil && r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&call.Body)
	}
	endpoint := endpointOf(r.URL.Path)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)

	if status, ok := s.statusFault[endpoint]; ok {
		w.WriteHeader(status)
		return
	}
	if s.exists[endpoint] {
		writeJSON(w, map[string]any{"status": "exists", "message": "timer already running"})
		return
	}
	if msg, ok := s.apiErrors[endpoint]; ok {
		writeJSON(w, map[string]any{"status": "error", "message": msg})
		return
	}
	if endpoint != "login" && r.Header.Get("Authorization") != "Bearer "+Token {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]any{"status": "error", "message": "unauthorized"})
		return
	}

	switch endpoint {
	case "login":
		if call.Body["password"] != s.password {
			writeJSON(w, map[string]any{"status": "error", "message": "invalid credentials"})
			return
		}
		writeJSON(w, map[string]any{"status": "success", "data": map[string]any{"token": Token, "user": s.user}})
	case "getTickets":
		c := s.collection
		if call.Query["unfiltered"] == "1" {
			c = s.unfiltered
		}
		writeJSON(w, map[string]any{"status": "success", "data": map[string]any{
			"my_tickets":  nonNil(c.My),
			"new_tickets": nonNil(c.New),
			"all_tickets": nonNil(c.All),
		}})
	case "getTicket":
		id, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/getTicket/"), 10, 64)
		t, ok := s.details[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]any{"status": "error", "message": "ticket not found"})
			return
		}
		writeJSON(w, map[string]any{"status": "success", "data": t})
	case "getCustomers":
		writeJSON(w, map[string]any{"status": "success", "data": nonNilMaps(s.customers)})
	case "getPlayerStatus":
		rec := s.timers[timerKey{call.Query["ticket_id"], call.Query["user_id"]}]
		if rec == nil {
			writeJSON(w, map[string]any{"status": "success", "play_status": "", "total_time": 0})
			return
		}
		writeJSON(w, map[string]any{"status": "success", "play_status": rec.status, "total_time": rec.minutes})
	case "play", "pause", "resume", "stop", "correctWatch":
		s.applyTimer(endpoint, call.Body)
		writeJSON(w, map[string]any{"status": "success"})
	case "saveVerlaufApi":
		writeJSON(w, map[string]any{"result": "success"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) applyTimer(endpoint string, body map[string]any) {
	key := timerKey{numberText(body["ticket_id"]), numberText(body["user_id"])}
	rec := s.timers[key]
	switch endpoint {
	case "play":
		s.timers[key] = &timerRecord{status: "1"}
	case "pause":
		if rec != nil {
			rec.status = "2"
		}
	case "resume":
		if rec != nil {
			rec.status = "3"
		}
	case "stop":
		delete(s.timers, key)
	case "correctWatch":
		if rec != nil {
			if m, ok := body["minutes"].(float64); ok {
				rec.minutes = m
			}
		}
	}
}

func endpointOf(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

func numberText(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatInt(int64(n), 10)
	case string:
		return n
	}
	return ""
}

func ticketID(t Ticket) int64 {
	switch v := t["id"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func nonNil(ts []Ticket) []Ticket {
	if ts == nil {
		return []Ticket{}
	}
	return ts
}

func nonNilMaps(ms []map[string]any) []map[string]any {
	if ms == nil {
		return []map[string]any{}
	}
	return ms
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
