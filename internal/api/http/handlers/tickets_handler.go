package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/auth"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/service"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

// TicketsHandler serves the ticket list tabs and ticket details.
type TicketsHandler struct {
	listing *service.ListingService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(listing *service.ListingService) *TicketsHandler {
	return &TicketsHandler{listing: listing}
}

// List GET /tickets?tab=.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	tech, tab, err := listRequest(c)
	if err != nil {
		return err
	}
	view, err := h.listing.View(c.UserContext(), tech, tab)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketListResponse(view)})
}

// More POST /tickets/more?tab=.
func (h *TicketsHandler) More(c *fiber.Ctx) error {
	tech, tab, err := listRequest(c)
	if err != nil {
		return err
	}
	view, err := h.listing.LoadMore(c.UserContext(), tech, tab)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketListResponse(view)})
}

// Refresh POST /tickets/refresh?tab=.
func (h *TicketsHandler) Refresh(c *fiber.Ctx) error {
	tech, tab, err := listRequest(c)
	if err != nil {
		return err
	}
	if err := h.listing.Refresh(c.UserContext(), tech); err != nil {
		return err
	}
	view, err := h.listing.View(c.UserContext(), tech, tab)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketListResponse(view)})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"), "id")
	if err != nil {
		return err
	}
	ticket, err := h.listing.Ticket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

func listRequest(c *fiber.Ctx) (domain.Technician, domain.Tab, error) {
	tech, ok := auth.TechnicianFromContext(c)
	if !ok {
		return domain.Technician{}, "", apperrors.NewUnauthorized("login required")
	}
	tab, err := domain.ParseTab(c.Query("tab"))
	if err != nil {
		return domain.Technician{}, "", apperrors.NewValidationError(err.Error(), map[string]any{"tab": c.Query("tab")})
	}
	return tech, tab, nil
}

func parseID(raw, field string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid "+field, map[string]any{field: raw})
	}
	return id, nil
}

func ticketListResponse(view service.TicketView) dto.TicketListResponse {
	items := make([]dto.TicketSummary, 0, len(view.Page.Items))
	for _, t := range view.Page.Items {
		items = append(items, ticketSummary(t))
	}
	return dto.TicketListResponse{
		Tab:     view.Tab,
		Items:   items,
		Total:   view.Page.Total,
		Visible: view.Page.Visible,
		HasMore: view.Page.HasMore,
		Counts:  view.Counts,
		Filters: view.Filters,
		Stale:   view.Stale,
	}
}

func ticketSummary(t domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:       t.ID,
		Summary:  t.Summary,
		Status:   t.Status,
		Priority: t.Priority,
		Severity: t.Severity(),
		Company: dto.CompanyResponse{
			ID:     t.Company.ID,
			Name:   t.Company.Name,
			Number: t.Company.Number,
			Email:  t.Company.Email,
			Phone:  t.Company.Phone,
		},
		Assignee:     t.Assignee,
		CreatedAt:    t.CreatedAt,
		MessageCount: t.MessageCount,
		PlayStatus:   t.PlayStatus,
	}
}

func ticketDetail(t domain.Ticket) dto.TicketDetailResponse {
	attachments := t.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return dto.TicketDetailResponse{
		TicketSummary: ticketSummary(t),
		Description:   t.EffectiveDescription(),
		StatusID:      t.StatusID,
		Creator:       t.Creator,
		ContactName:   t.ContactName,
		ContactPhone:  t.ContactPhone,
		StartDate:     t.StartDate,
		Attachments:   attachments,
	}
}
