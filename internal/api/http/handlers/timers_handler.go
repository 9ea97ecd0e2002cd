package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/auth"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/service"
	"github.com/spec-kit/ticket-desk/internal/ticketbase"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

// TimersHandler drives the per-ticket time tracking.
type TimersHandler struct {
	tracker *service.TimeTracker
}

// NewTimersHandler constructs handler.
func NewTimersHandler(tracker *service.TimeTracker) *TimersHandler {
	return &TimersHandler{tracker: tracker}
}

// Status GET /timers/:ticketID. The state is reconciled with the server; when
// the server cannot be reached the local state is returned as stale.
func (h *TimersHandler) Status(c *fiber.Ctx) error {
	key, err := timerKey(c)
	if err != nil {
		return err
	}
	h.tracker.Track(key)
	snap, err := h.tracker.Refresh(c.UserContext(), key)
	switch {
	case errors.Is(err, ticketbase.ErrRateLimited), errors.Is(err, ticketbase.ErrTransport):
		return c.JSON(fiber.Map{"data": timerResponse(snap), "stale": true})
	case err != nil:
		return err
	}
	return c.JSON(fiber.Map{"data": timerResponse(snap)})
}

// Start POST /timers/:ticketID/start.
func (h *TimersHandler) Start(c *fiber.Ctx) error {
	return h.transition(c, h.tracker.Start)
}

// Pause POST /timers/:ticketID/pause.
func (h *TimersHandler) Pause(c *fiber.Ctx) error {
	return h.transition(c, h.tracker.Pause)
}

// Resume POST /timers/:ticketID/resume.
func (h *TimersHandler) Resume(c *fiber.Ctx) error {
	return h.transition(c, h.tracker.Resume)
}

// Finish POST /timers/:ticketID/finish.
func (h *TimersHandler) Finish(c *fiber.Ctx) error {
	key, err := timerKey(c)
	if err != nil {
		return err
	}
	var req dto.FinishTimerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	snap, err := h.tracker.Finish(c.UserContext(), key, service.FinishInput{
		Description:      req.Description,
		StatusID:         req.StatusID,
		CorrectedMinutes: req.Minutes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": timerResponse(snap)})
}

type timerAction func(ctx context.Context, key domain.TimerKey) (service.TimerSnapshot, error)

func (h *TimersHandler) transition(c *fiber.Ctx, action timerAction) error {
	key, err := timerKey(c)
	if err != nil {
		return err
	}
	snap, err := action(c.UserContext(), key)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": timerResponse(snap)})
}

func timerKey(c *fiber.Ctx) (domain.TimerKey, error) {
	tech, ok := auth.TechnicianFromContext(c)
	if !ok {
		return domain.TimerKey{}, apperrors.NewUnauthorized("login required")
	}
	id, err := parseID(c.Params("ticketID"), "ticket_id")
	if err != nil {
		return domain.TimerKey{}, err
	}
	return domain.TimerKey{TicketID: id, UserID: tech.ID}, nil
}

func timerResponse(s service.TimerSnapshot) dto.TimerResponse {
	return dto.TimerResponse{
		TicketID:   s.Key.TicketID,
		Status:     s.Status,
		LastAction: s.LastAction,
		ElapsedMS:  s.Elapsed.Milliseconds(),
		Minutes:    s.Minutes,
		Display:    s.Display,
	}
}
