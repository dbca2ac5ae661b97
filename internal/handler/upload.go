package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/echostudy/api/internal/middleware"
	"github.com/echostudy/api/internal/service"
	"github.com/echostudy/api/pkg/response"
)

const maxUploadSize = 100 * 1024 * 1024 // 100MB

type UploadHandler struct {
	service   *service.UploadService
	validator *validator.Validate
}

func NewUploadHandler(svc *service.UploadService, v *validator.Validate) *UploadHandler {
	return &UploadHandler{
		service:   svc,
		validator: v,
	}
}

// Audio handles POST /api/uploads/audio
func (h *UploadHandler) Audio(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return response.Unauthorized(c, "Unauthorized")
	}

	// Get file
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required.")
	}

	// Validate file size
	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 100MB limit.")
	}

	// Validate file type
	contentType := file.Header.Get("Content-Type")
	validTypes := map[string]bool{
		"audio/wav":   true,
		"audio/x-wav": true,
		"audio/wave":  true,
		"audio/mpeg":  true,
		"audio/mp3":   true,
		"audio/mp4":   true,
		"audio/x-m4a": true,
		"audio/m4a":   true,
		"audio/aac":   true,
		"audio/x-aac": true,
		"audio/webm":  true,
		"audio/ogg":   true,
	}

	if !validTypes[contentType] {
		return response.ValidationError(c, "Invalid file type. Supported: WAV, M4A, MP3, AAC, WEBM, OGG.")
	}

	// Open file
	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file.")
	}
	defer f.Close()

	// Upload
	result, err := h.service.UploadAudio(c.Context(), userID, file.Filename, contentType, f, file.Size)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// DeleteAudio handles DELETE /api/uploads/audio/*
func (h *UploadHandler) DeleteAudio(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return response.Unauthorized(c, "Unauthorized")
	}

	key := c.Params("*")
	if key == "" {
		return response.ValidationError(c, "Audio path is required.")
	}

	if err := h.service.DeleteAudio(c.Context(), key); err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}
