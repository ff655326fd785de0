package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/tattle-publisher/internal/service"
)

func ParamID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid post ID")
	}
	return id, nil
}

// ErrorResponse maps service errors onto HTTP status codes.
func ErrorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrDeclineReasonRequired),
		errors.Is(err, service.ErrEmptyMedia),
		errors.Is(err, service.ErrTooManyMedia),
		errors.Is(err, service.ErrValidation):
		status = fiber.StatusBadRequest
	}

	if status == fiber.StatusInternalServerError {
		slog.Error(err.Error(), "path", c.Path())
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports whether the database answers.
func Health(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := db.PingContext(c.Context()); err != nil {
			slog.Error("health check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
			})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}
