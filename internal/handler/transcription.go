package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/echostudy/api/internal/middleware"
	"github.com/echostudy/api/internal/model"
	"github.com/echostudy/api/internal/service"
	"github.com/echostudy/api/pkg/response"
)

type TranscriptionHandler struct {
	service   *service.TranscriptionService
	validator *validator.Validate
}

func NewTranscriptionHandler(svc *service.TranscriptionService, v *validator.Validate) *TranscriptionHandler {
	return &TranscriptionHandler{
		service:   svc,
		validator: v,
	}
}

// Enqueue handles POST /api/transcriptions. It validates the payload,
// clears stale jobs for the lecture and inserts a fresh pending job.
func (h *TranscriptionHandler) Enqueue(c *fiber.Ctx) error {
	var req model.EnqueueTranscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "ownerId and audioReference are required.")
	}

	// Whitespace-only values pass the required tag; the service trims and
	// rejects those with the same message.
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "ownerId and audioReference are required.")
	}

	userID := middleware.GetUserID(c)
	if userID == "" {
		return response.Unauthorized(c, "Unauthorized")
	}

	result, err := h.service.Enqueue(c.Context(), userID, &req)
	if err != nil {
		var validationErr *service.ValidationError
		switch {
		case errors.As(err, &validationErr):
			return response.ValidationError(c, validationErr.Message)
		case errors.Is(err, service.ErrLectureNotFound):
			return response.NotFound(c, "Lecture not found.")
		default:
			return response.ServiceError(c, "Failed to enqueue transcription job.")
		}
	}

	return response.OK(c, result)
}

// Status handles GET /api/transcriptions/:jobId.
func (h *TranscriptionHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required.")
	}

	userID := middleware.GetUserID(c)
	if userID == "" {
		return response.Unauthorized(c, "Unauthorized")
	}

	result, err := h.service.GetJob(c.Context(), userID, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found.")
		}
		return response.ServiceError(c, "Failed to load transcription job.")
	}

	return response.OK(c, result)
}
