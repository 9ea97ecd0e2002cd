package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/service"
)

// CustomersHandler serves the customer autocomplete.
type CustomersHandler struct {
	listing *service.ListingService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(listing *service.ListingService) *CustomersHandler {
	return &CustomersHandler{listing: listing}
}

// Search GET /customers?q=&limit=.
func (h *CustomersHandler) Search(c *fiber.Ctx) error {
	customers, err := h.listing.SearchCustomers(c.UserContext(), c.Query("q"), c.QueryInt("limit", service.MaxCustomerSuggestions))
	if err != nil {
		return err
	}
	items := make([]dto.CustomerResponse, 0, len(customers))
	for _, cu := range customers {
		items = append(items, dto.CustomerResponse{ID: cu.ID, Name: cu.Name, Number: cu.Number})
	}
	return c.JSON(fiber.Map{"data": items})
}
