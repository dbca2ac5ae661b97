package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/echostudy/api/internal/client"
	"github.com/echostudy/api/internal/model"
)

// UploadService stores lecture audio in the blob bucket. The returned
// audioPath is what the enqueue endpoint later resolves back into bytes.
type UploadService struct {
	storage client.StorageClient
}

// NewUploadService creates a new upload service backed by the audio bucket.
func NewUploadService(storage client.StorageClient) *UploadService {
	return &UploadService{
		storage: storage,
	}
}

// UploadAudio uploads a lecture recording and returns its storage key.
func (s *UploadService) UploadAudio(ctx context.Context, userID, filename, contentType string, file io.Reader, fileSize int64) (*model.UploadAudioResponse, error) {
	ext := path.Ext(filename)
	if ext == "" {
		ext = ".mp3"
	}
	key := fmt.Sprintf("%s/%s%s", userID, uuid.New().String(), ext)

	// Use a mock path if storage is not configured (local development).
	if s.storage == nil {
		return &model.UploadAudioResponse{
			AudioPath: key,
			MimeType:  contentType,
			Size:      fileSize,
			CreatedAt: time.Now(),
		}, nil
	}

	if _, err := s.storage.Upload(ctx, key, file, contentType); err != nil {
		return nil, fmt.Errorf("failed to upload audio: %w", err)
	}

	return &model.UploadAudioResponse{
		AudioPath: key,
		MimeType:  contentType,
		Size:      fileSize,
		CreatedAt: time.Now(),
	}, nil
}

// DeleteAudio removes an uploaded recording by its storage key.
func (s *UploadService) DeleteAudio(ctx context.Context, key string) error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Delete(ctx, key)
}
