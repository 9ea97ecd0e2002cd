package ticketbase

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited is returned for HTTP 429. It is transient.
	ErrRateLimited = errors.New("ticketbase: rate limited")
	// ErrExists is the backend's business rejection, e.g. a timer already
	// running for another user.
	ErrExists = errors.New("ticketbase: already exists")
	// ErrTransport wraps failures where no response was received.
	ErrTransport = errors.New("ticketbase: transport failure")
	// ErrUnauthorized is matched by APIErrors with HTTP 401.
	ErrUnauthorized = errors.New("ticketbase: unauthorized")
	// ErrNotFound is matched by APIErrors with HTTP 404.
	ErrNotFound = errors.New("ticketbase: not found")
	// ErrMalformed is returned when a response does not fit its schema.
	ErrMalformed = errors.New("ticketbase: malformed response")
)

// APIError is an error response from the ticketing API.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("ticketbase %s: %d %s", e.Endpoint, e.StatusCode, msg)
}

// Is lets errors.Is match status-derived sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// ExistsError carries the backend message of an "exists" response.
type ExistsError struct {
	Endpoint string
	Message  string
}

func (e *ExistsError) Error() string {
	if e.Message == "" {
		return "ticketbase " + e.Endpoint + ": already exists"
	}
	return "ticketbase " + e.Endpoint + ": " + e.Message
}

// Unwrap makes errors.Is(err, ErrExists) hold.
func (e *ExistsError) Unwrap() error { return ErrExists }
