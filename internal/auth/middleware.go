package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/domain"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

const technicianKey = "auth_technician"

// CurrentTechnician resolves the logged-in technician.
type CurrentTechnician interface {
	Current(ctx context.Context) (domain.Technician, error)
}

// AuthMiddleware rejects requests while nobody is logged in.
type AuthMiddleware struct {
	sessions CurrentTechnician
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(sessions CurrentTechnician) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	tech, err := m.sessions.Current(c.UserContext())
	if errors.Is(err, ErrNotAuthenticated) {
		return apperrors.NewUnauthorized("login required")
	}
	if err != nil {
		return apperrors.MapError(err)
	}
	c.Locals(technicianKey, tech)
	return c.Next()
}

// TechnicianFromContext retrieves the authenticated technician.
func TechnicianFromContext(c *fiber.Ctx) (domain.Technician, bool) {
	tech, ok := c.Locals(technicianKey).(domain.Technician)
	return tech, ok
}
