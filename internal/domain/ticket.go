package domain

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"
)

// PlayStatus tags a ticket whose timer is running or paused for the current user.
type PlayStatus string

const (
	PlayStatusNone    PlayStatus = ""
	PlayStatusPlaying PlayStatus = "playing"
	PlayStatusPaused  PlayStatus = "paused"
)

// Severity is derived from the priority index, never from the label.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityElevated Severity = "elevated"
	SeverityCritical Severity = "critical"
)

const (
	elevatedPriorityIndex = 5
	criticalPriorityIndex = 8
)

// Company is the customer organisation a ticket belongs to.
type Company struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Number  string `json:"number,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Address string `json:"address,omitempty"`
}

// Ticket is one support ticket as seen by the client.
type Ticket struct {
	ID            int64      `json:"id"`
	Description   string     `json:"description,omitempty"`
	TemplateData  string     `json:"template_data,omitempty"`
	Status        string     `json:"status"`
	StatusID      int64      `json:"status_id,omitempty"`
	Summary       string     `json:"summary"`
	Priority      string     `json:"priority"`
	PriorityIndex int        `json:"priority_index"`
	Creator       string     `json:"creator,omitempty"`
	Assignee      string     `json:"assignee,omitempty"`
	ContactName   string     `json:"contact_name,omitempty"`
	ContactPhone  string     `json:"contact_phone,omitempty"`
	Company       Company    `json:"company"`
	CreatedAt     string     `json:"created_at"`
	StartDate     string     `json:"start_date,omitempty"`
	Attachments   []string   `json:"attachments,omitempty"`
	MessageCount  int        `json:"message_count"`
	PlayStatus    PlayStatus `json:"play_status,omitempty"`
}

// EffectiveDescription returns the stored description, or a flattening of the
// template data string values when the description is blank.
func (t Ticket) EffectiveDescription() string {
	if strings.TrimSpace(t.Description) != "" {
		return t.Description
	}
	return FlattenTemplateData(t.TemplateData)
}

// Created parses the creation timestamp in loc.
func (t Ticket) Created(loc *time.Location) (time.Time, bool) {
	return ParseTicketTime(t.CreatedAt, loc)
}

// Severity classifies the ticket by priority index.
func (t Ticket) Severity() Severity {
	switch {
	case t.PriorityIndex >= criticalPriorityIndex:
		return SeverityCritical
	case t.PriorityIndex >= elevatedPriorityIndex:
		return SeverityElevated
	default:
		return SeverityNormal
	}
}

// FlattenTemplateData joins every string value of a JSON document in document
// order. Invalid JSON yields the trimmed raw text.
func FlattenTemplateData(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	var (
		values []string
		stack  []jsonFrame
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return raw
		}
		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				stack = append(stack, jsonFrame{object: true, expectKey: true})
			case '[':
				stack = append(stack, jsonFrame{})
			default:
				stack = stack[:len(stack)-1]
				valueDone(stack)
			}
		case string:
			if n := len(stack); n > 0 && stack[n-1].expectKey {
				stack[n-1].expectKey = false
				continue
			}
			if s := strings.TrimSpace(v); s != "" {
				values = append(values, s)
			}
			valueDone(stack)
		default:
			valueDone(stack)
		}
	}
	if len(stack) != 0 {
		return raw
	}
	if len(values) == 0 && !strings.HasPrefix(raw, "{") && !strings.HasPrefix(raw, "[") {
		return raw
	}
	return strings.Join(values, "\n")
}

type jsonFrame struct {
	object    bool
	expectKey bool
}

func valueDone(stack []jsonFrame) {
	if n := len(stack); n > 0 && stack[n-1].object {
		stack[n-1].expectKey = true
	}
}
