package ticketbase

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// envelope is the discriminator every response carries. Some endpoints use
// "status", others "result".
type envelope struct {
	Status  flexString      `json:"status"`
	Result  flexString      `json:"result"`
	Message flexString      `json:"message"`
	Error   flexString      `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type outcome string

const (
	outcomeSuccess outcome = "success"
	outcomeError   outcome = "error"
	outcomeExists  outcome = "exists"
)

func (e envelope) outcome() outcome {
	switch strings.ToLower(first(e.Status, e.Result)) {
	case "error", "failed", "fail":
		return outcomeError
	case "exists":
		return outcomeExists
	default:
		return outcomeSuccess
	}
}

func (e envelope) message() string {
	return first(e.Message, e.Error)
}

type wireCompany struct {
	ID      flexInt    `json:"id"`
	Name    flexString `json:"name"`
	Number  flexString `json:"number"`
	Email   flexString `json:"email"`
	Phone   flexString `json:"phone"`
	Zip     flexString `json:"zip"`
	Address flexString `json:"address"`
}

type wireTicket struct {
	ID            flexInt         `json:"id"`
	TicketID      flexInt         `json:"ticket_id"`
	Description   flexString      `json:"description"`
	TemplateData  json.RawMessage `json:"template_data"`
	Status        flexString      `json:"status"`
	StatusName    flexString      `json:"status_name"`
	StatusID      flexInt         `json:"status_id"`
	Summary       flexString      `json:"summary"`
	Subject       flexString      `json:"subject"`
	Priority      flexString      `json:"priority"`
	PriorityName  flexString      `json:"priority_name"`
	PriorityIndex flexInt         `json:"priority_index"`
	PriorityID    flexInt         `json:"priority_id"`
	Creator       flexString      `json:"creator"`
	CreatedBy     flexString      `json:"created_by"`
	Assignee      flexString      `json:"assignee"`
	AssignedTo    flexString      `json:"assigned_to"`
	ContactName   flexString      `json:"contact_name"`
	ContactPhone  flexString      `json:"contact_phone"`
	Company       *wireCompany    `json:"company"`
	CompanyID     flexInt         `json:"company_id"`
	CompanyName   flexString      `json:"company_name"`
	CompanyNumber flexString      `json:"company_number"`
	CreatedAt     flexString      `json:"created_at"`
	Created       flexString      `json:"created"`
	StartDate     flexString      `json:"start_date"`
	Attachments   json.RawMessage `json:"attachments"`
	MessageCount  flexInt         `json:"message_count"`
	PlayStatus    flexString      `json:"play_status"`
}

type wireCollection struct {
	MyTickets  []json.RawMessage `json:"my_tickets"`
	NewTickets []json.RawMessage `json:"new_tickets"`
	AllTickets []json.RawMessage `json:"all_tickets"`
}

type wireCustomer struct {
	ID             flexInt    `json:"id"`
	Name           flexString `json:"name"`
	CompanyName    flexString `json:"company_name"`
	Number         flexString `json:"number"`
	CustomerNumber flexString `json:"customer_number"`
}

type wirePlayerStatus struct {
	PlayStatus flexString `json:"play_status"`
	TotalTime  flexFloat  `json:"total_time"`
}

type wireUser struct {
	ID         flexInt    `json:"id"`
	UserID     flexInt    `json:"user_id"`
	Name       flexString `json:"name"`
	Username   flexString `json:"username"`
	GroupID    flexInt    `json:"group_id"`
	CompanyID  flexInt    `json:"company_id"`
	LocationID flexInt    `json:"location_id"`
}

type wireLogin struct {
	Token flexString `json:"token"`
	User  *wireUser  `json:"user"`
}

// normalizeTicket is the single conversion from the wire schema to the domain
// entity. Tickets without an id are rejected.
func normalizeTicket(raw json.RawMessage) (domain.Ticket, bool) {
	var w wireTicket
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.Ticket{}, false
	}
	id := firstInt(w.ID, w.TicketID)
	if id <= 0 {
		return domain.Ticket{}, false
	}
	t := domain.Ticket{
		ID:            id,
		Description:   w.Description.String(),
		TemplateData:  templateText(w.TemplateData),
		Status:        first(w.StatusName, w.Status),
		StatusID:      int64(w.StatusID),
		Summary:       first(w.Summary, w.Subject),
		Priority:      first(w.Priority, w.PriorityName),
		PriorityIndex: int(firstInt(w.PriorityIndex, w.PriorityID)),
		Creator:       first(w.Creator, w.CreatedBy),
		Assignee:      first(w.Assignee, w.AssignedTo),
		ContactName:   w.ContactName.String(),
		ContactPhone:  w.ContactPhone.String(),
		CreatedAt:     first(w.CreatedAt, w.Created),
		StartDate:     w.StartDate.String(),
		Attachments:   attachmentNames(w.Attachments),
		MessageCount:  int(w.MessageCount),
		PlayStatus:    playStatusTag(w.PlayStatus.String()),
	}
	if w.Company != nil {
		t.Company = domain.Company{
			ID:      int64(w.Company.ID),
			Name:    w.Company.Name.String(),
			Number:  w.Company.Number.String(),
			Email:   w.Company.Email.String(),
			Phone:   w.Company.Phone.String(),
			Zip:     w.Company.Zip.String(),
			Address: w.Company.Address.String(),
		}
	}
	if t.Company.ID == 0 {
		t.Company.ID = int64(w.CompanyID)
	}
	if t.Company.Name == "" {
		t.Company.Name = w.CompanyName.String()
	}
	if t.Company.Number == "" {
		t.Company.Number = w.CompanyNumber.String()
	}
	return t, true
}

func normalizeTickets(raws []json.RawMessage) ([]domain.Ticket, int) {
	out := make([]domain.Ticket, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		t, ok := normalizeTicket(raw)
		if !ok {
			dropped++
			continue
		}
		out = append(out, t)
	}
	return out, dropped
}

// templateText keeps template data as JSON text whether it arrived as an
// embedded string or as an object.
func templateText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}

func attachmentNames(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
			continue
		}
		var obj struct {
			Filename flexString `json:"filename"`
			FileName flexString `json:"file_name"`
			Name     flexString `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err == nil {
			if n := first(obj.Filename, obj.FileName, obj.Name); n != "" {
				names = append(names, n)
			}
		}
	}
	return names
}

func playStatusTag(v string) domain.PlayStatus {
	switch timerStatus(v) {
	case domain.TimerPlaying:
		return domain.PlayStatusPlaying
	case domain.TimerPaused:
		return domain.PlayStatusPaused
	}
	return domain.PlayStatusNone
}

// timerStatus collapses the backend's play states; PLAY and RESUME both mean
// playing.
func timerStatus(v string) domain.TimerStatus {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "playing", "play", "running", "resume", "resumed", "1", "3":
		return domain.TimerPlaying
	case "paused", "pause", "2":
		return domain.TimerPaused
	}
	return domain.TimerStopped
}

func normalizeCustomer(w wireCustomer) (domain.Customer, bool) {
	if w.ID <= 0 {
		return domain.Customer{}, false
	}
	return domain.Customer{
		ID:     int64(w.ID),
		Name:   first(w.Name, w.CompanyName),
		Number: first(w.Number, w.CustomerNumber),
	}, true
}
