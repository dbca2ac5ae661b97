package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/echostudy/api/internal/middleware"
	"github.com/echostudy/api/internal/service"
	"github.com/echostudy/api/pkg/response"
)

// LectureHandler serves the poll surface: the UI reads the lecture row until
// its transcription status goes terminal.
type LectureHandler struct {
	service *service.TranscriptionService
}

func NewLectureHandler(svc *service.TranscriptionService) *LectureHandler {
	return &LectureHandler{service: svc}
}

// Get handles GET /api/lectures/:lectureId.
func (h *LectureHandler) Get(c *fiber.Ctx) error {
	lectureID := c.Params("lectureId")
	if lectureID == "" {
		return response.ValidationError(c, "Lecture ID is required.")
	}

	userID := middleware.GetUserID(c)
	if userID == "" {
		return response.Unauthorized(c, "Unauthorized")
	}

	lecture, err := h.service.GetLecture(c.Context(), userID, lectureID)
	if err != nil {
		if errors.Is(err, service.ErrLectureNotFound) {
			return response.NotFound(c, "Lecture not found.")
		}
		return response.ServiceError(c, "Failed to load lecture.")
	}

	return response.OK(c, lecture)
}
