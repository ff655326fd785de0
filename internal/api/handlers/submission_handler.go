package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/tattle-publisher/internal/service"
	"github.com/maheshrc27/tattle-publisher/internal/transfer"
)

type SubmissionHandler struct {
	s service.PostService
}

func NewSubmissionHandler(service service.PostService) *SubmissionHandler {
	return &SubmissionHandler{s: service}
}

func (h *SubmissionHandler) Submit(c *fiber.Ctx) error {
	var body transfer.PostSubmission
	if err := c.BodyParser(&body); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse body",
		})
	}

	id, err := h.s.Submit(c.Context(), body.AccountID, body.Email, body.Caption, body.Media)
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Submission received",
		"id":      id,
	})
}
