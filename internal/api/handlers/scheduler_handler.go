package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/tattle-publisher/internal/service"
	"github.com/maheshrc27/tattle-publisher/internal/transfer"
)

type SchedulerHandler struct {
	ps service.PublishService
}

func NewSchedulerHandler(ps service.PublishService) *SchedulerHandler {
	return &SchedulerHandler{ps: ps}
}

// Trigger publishes at most one approved post. A failed publish is still a
// successful scheduler run: the failure is recorded on the post.
func (h *SchedulerHandler) Trigger(c *fiber.Ctx) error {
	outcome, err := h.ps.PublishNext(c.Context())
	if err != nil {
		slog.Error("scheduler run failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Scheduler execution failed",
			"details": err.Error(),
		})
	}

	resp := transfer.TriggerResponse{
		Success:   true,
		Message:   "Scheduler executed successfully",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if outcome == nil {
		resp.Message = "No approved posts to publish"
		return c.Status(fiber.StatusOK).JSON(resp)
	}

	resp.PostID = outcome.PostID
	resp.Published = outcome.Result.Success
	resp.ExternalPostID = outcome.Result.ExternalPostID
	resp.Error = outcome.Result.ErrorMessage()
	return c.Status(fiber.StatusOK).JSON(resp)
}
