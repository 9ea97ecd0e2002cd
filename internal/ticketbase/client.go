// Package ticketbase is the HTTP client for the remote ticketing REST API.
// Responses are validated here and normalized into domain types; nothing past
// this package sees the wire shapes.
package ticketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBodyBytes = 16 << 20

// Recorder receives one observation per remote call.
type Recorder interface {
	RecordUpstream(endpoint string, status int, duration time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	Token      func() string
	HTTPClient *http.Client
	Logger     *zap.Logger
	Recorder   Recorder
}

// Client calls the ticketing API.
type Client struct {
	baseURL    string
	userAgent  string
	token      func() string
	httpClient *http.Client
	logger     *zap.Logger
	recorder   Recorder
}

// NewClient builds a client. Token is consulted on every request.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	token := opts.Token
	if token == nil {
		token = func() string { return "" }
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "ticket-desk"
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  ua,
		token:      token,
		httpClient: httpClient,
		logger:     logger,
		recorder:   opts.Recorder,
	}
}

// call performs one request and returns the decoded envelope plus the raw body.
// It maps HTTP 429, transport failures, "exists" and "error" onto this
// package's error values.
func (c *Client) call(ctx context.Context, method, endpoint string, query url.Values, in any) (envelope, []byte, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return envelope{}, nil, fmt.Errorf("ticketbase %s: encode: %w", endpoint, err)
		}
		body = bytes.NewReader(b)
	}

	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return envelope{}, nil, fmt.Errorf("ticketbase %s: new request: %w", endpoint, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(endpoint, 0, started)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return envelope{}, nil, fmt.Errorf("%w: %s: %w", ErrTransport, endpoint, ctxErr)
		}
		return envelope{}, nil, fmt.Errorf("%w: %s: %v", ErrTransport, endpoint, err)
	}
	defer resp.Body.Close()
	c.record(endpoint, resp.StatusCode, started)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return envelope{}, nil, fmt.Errorf("%w: %s: read body: %v", ErrTransport, endpoint, err)
	}

	c.logger.Debug("ticketbase call",
		zap.String("endpoint", endpoint),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(started)))

	if resp.StatusCode == http.StatusTooManyRequests {
		return envelope{}, nil, fmt.Errorf("%w: %s", ErrRateLimited, endpoint)
	}

	var env envelope
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 400 {
			return envelope{}, nil, fmt.Errorf("%w: %s: %v", ErrMalformed, endpoint, err)
		}
	}

	if resp.StatusCode >= 400 {
		return env, raw, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: env.message()}
	}
	switch env.outcome() {
	case outcomeExists:
		return env, raw, &ExistsError{Endpoint: endpoint, Message: env.message()}
	case outcomeError:
		return env, raw, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: env.message()}
	}
	return env, raw, nil
}

func (c *Client) record(endpoint string, status int, started time.Time) {
	if c.recorder != nil {
		c.recorder.RecordUpstream(endpoint, status, time.Since(started))
	}
}

func idQuery(pairs ...any) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		key, _ := pairs[i].(string)
		switch v := pairs[i+1].(type) {
		case int64:
			if v != 0 {
				q.Set(key, fmt.Sprint(v))
			}
		case string:
			if v != "" {
				q.Set(key, v)
			}
		}
	}
	return q
}
