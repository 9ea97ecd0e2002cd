package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/http/handlers"
	"github.com/spec-kit/ticket-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Filters        *handlers.FiltersHandler
	Customers      *handlers.CustomersHandler
	Timers         *handlers.TimersHandler
	Metrics        *handlers.MetricsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Get)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	protected.Get("/tickets", cfg.Tickets.List)
	protected.Post("/tickets/more", cfg.Tickets.More)
	protected.Post("/tickets/refresh", cfg.Tickets.Refresh)
	protected.Get("/tickets/:id", cfg.Tickets.Get)

	protected.Get("/filters", cfg.Filters.Get)
	protected.Patch("/filters", cfg.Filters.Patch)
	protected.Delete("/filters", cfg.Filters.Reset)
	protected.Put("/nav", cfg.Filters.Nav)

	protected.Get("/customers", cfg.Customers.Search)
	protected.Get("/notifications", cfg.Notifications.List)

	timers := protected.Group("/timers/:ticketID")
	timers.Get("", cfg.Timers.Status)
	timers.Post("/start", cfg.Timers.Start)
	timers.Post("/pause", cfg.Timers.Pause)
	timers.Post("/resume", cfg.Timers.Resume)
	timers.Post("/finish", cfg.Timers.Finish)
}
