package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/auth"
	"github.com/spec-kit/ticket-desk/internal/observability"
	"github.com/spec-kit/ticket-desk/internal/service"
	"github.com/spec-kit/ticket-desk/internal/ticketbase"
	apperrors "github.com/spec-kit/ticket-desk/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := MapError(err)
				route := c.Path()
				if r := c.Route(); r != nil && r.Path != "" {
					route = r.Path
				}
				metrics.RecordError(route, c.Method(), domainErr.Code)
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.String("path", c.Path()), zap.Error(domainErr))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}

// MapError translates client, tracker and session errors into DomainErrors.
func MapError(err error) *apperrors.DomainError {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return apperrors.NewDomainError(httpCode(fiberErr.Code), fiberErr.Message, fiberErr.Code, nil)
	}

	var mapped error
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated), errors.Is(err, ticketbase.ErrUnauthorized):
		mapped = apperrors.NewUnauthorized("login required")
	case errors.Is(err, service.ErrTimerConflict):
		mapped = apperrors.NewConflict("a timer is already running for this ticket", nil)
	case errors.Is(err, service.ErrInvalidTransition):
		mapped = apperrors.NewConflict(err.Error(), nil)
	case errors.Is(err, ticketbase.ErrNotFound):
		mapped = apperrors.NewNotFound("ticket", nil)
	case errors.Is(err, ticketbase.ErrRateLimited):
		mapped = apperrors.NewRateLimited(err)
	case errors.Is(err, ticketbase.ErrTransport), errors.Is(err, ticketbase.ErrMalformed):
		mapped = apperrors.NewUpstreamUnavailable("", err)
	}
	if mapped == nil {
		var apiErr *ticketbase.APIError
		var existsErr *ticketbase.ExistsError
		switch {
		case errors.As(err, &existsErr):
			mapped = apperrors.NewConflict(existsErr.Message, nil)
		case errors.As(err, &apiErr):
			mapped = apperrors.NewUpstreamUnavailable(apiErr.Message, err)
		}
	}
	if mapped != nil {
		return apperrors.ToDomainError(mapped)
	}
	return apperrors.ToDomainError(err)
}

func httpCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return "VALIDATION_FAILED"
	}
	if status >= 500 {
		return "INTERNAL_ERROR"
	}
	return "REQUEST_FAILED"
}
