package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/tattle-publisher/internal/models"
	"github.com/maheshrc27/tattle-publisher/internal/queue"
	"github.com/maheshrc27/tattle-publisher/internal/repository"
	"github.com/maheshrc27/tattle-publisher/internal/service"
	"github.com/maheshrc27/tattle-publisher/internal/transfer"
)

// PostHandler serves the admin moderation API.
type PostHandler struct {
	s           service.PostService
	ar          repository.PublishAttemptRepository
	AsynqClient queue.Enqueuer
}

func NewPostHandler(service service.PostService, attempts repository.PublishAttemptRepository, asynqClient queue.Enqueuer) *PostHandler {
	return &PostHandler{s: service, ar: attempts, AsynqClient: asynqClient}
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	status := models.PostStatus(strings.TrimSpace(c.Query("status")))

	posts, err := h.s.List(c.Context(), status)
	if err != nil {
		return ErrorResponse(c, err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"count":   len(posts),
		"data":    posts,
	})
}

func (h *PostHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.s.Stats(c.Context())
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	id, err := ParamID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	post, err := h.s.Get(c.Context(), id)
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    post,
	})
}

func (h *PostHandler) ListAttempts(c *fiber.Ctx) error {
	id, err := ParamID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if _, err := h.s.Get(c.Context(), id); err != nil {
		return ErrorResponse(c, err)
	}

	attempts, err := h.ar.ListByPostID(c.Context(), id)
	if err != nil {
		return ErrorResponse(c, err)
	}
	if attempts == nil {
		attempts = []*models.PublishAttempt{}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"count":   len(attempts),
		"data":    attempts,
	})
}

func (h *PostHandler) Approve(c *fiber.Ctx) error {
	id, err := ParamID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	post, err := h.s.Approve(c.Context(), id)
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Post approved successfully",
		"data":    post,
	})
}

func (h *PostHandler) Decline(c *fiber.Ctx) error {
	id, err := ParamID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var body transfer.DeclineRequest
	if err := c.BodyParser(&body); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse body",
		})
	}

	post, err := h.s.Decline(c.Context(), id, body.DeclinedMessage)
	if err != nil {
		return ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Post declined successfully",
		"data":    post,
	})
}

// Publish queues an immediate publish of one approved post.
func (h *PostHandler) Publish(c *fiber.Ctx) error {
	id, err := ParamID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	post, err := h.s.Get(c.Context(), id)
	if err != nil {
		return ErrorResponse(c, err)
	}
	if post.Status != models.PostStatusApproved {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Only approved posts can be published",
		})
	}

	err = queue.EnqueuePublish(c.Context(), h.AsynqClient, id)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Post is already queued for publishing",
		})
	}
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error scheduling post",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"message": "Post queued for publishing",
	})
}
