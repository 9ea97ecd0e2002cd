package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/session"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

// FiltersHandler edits the session's filter and navigation state.
type FiltersHandler struct {
	session *session.Store
}

// NewFiltersHandler constructs handler.
func NewFiltersHandler(store *session.Store) *FiltersHandler {
	return &FiltersHandler{session: store}
}

// Get GET /filters.
func (h *FiltersHandler) Get(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{
		"filters": h.session.Filters(),
		"nav":     h.session.Nav(),
	}})
}

// Patch PATCH /filters. Changing a predicate resets the page windows.
func (h *FiltersHandler) Patch(c *fiber.Ctx) error {
	var patch domain.FilterPatch
	if err := c.BodyParser(&patch); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validatePatch(patch); err != nil {
		return err
	}
	filters, changed := h.session.UpdateFilters(patch)
	return c.JSON(fiber.Map{"data": fiber.Map{
		"filters":     filters,
		"nav":         h.session.Nav(),
		"pages_reset": changed,
	}})
}

// Reset DELETE /filters.
func (h *FiltersHandler) Reset(c *fiber.Ctx) error {
	filters := h.session.ResetFilters()
	return c.JSON(fiber.Map{"data": fiber.Map{
		"filters": filters,
		"nav":     h.session.Nav(),
	}})
}

// Nav PUT /nav.
func (h *FiltersHandler) Nav(c *fiber.Ctx) error {
	var req dto.NavRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	tab, err := domain.ParseTab(string(req.ActiveTab))
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"active_tab": req.ActiveTab})
	}
	h.session.SetActiveTab(tab)
	if req.Scroll != nil {
		h.session.SetScroll(tab, *req.Scroll)
	}
	return c.JSON(fiber.Map{"data": h.session.Nav()})
}

func validatePatch(p domain.FilterPatch) error {
	details := map[string]any{}
	for field, v := range map[string]*string{"date_from": p.DateFrom, "date_to": p.DateTo} {
		if v == nil || *v == "" {
			continue
		}
		if _, ok := domain.ParseDay(*v, nil); !ok {
			details[field] = "expected YYYY-MM-DD"
		}
	}
	if p.CustomerID != nil && *p.CustomerID < 0 {
		details["customer_id"] = "must not be negative"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid filters", details)
	}
	return nil
}
