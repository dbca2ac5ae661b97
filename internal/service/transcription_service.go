package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/echostudy/api/internal/model"
	"github.com/echostudy/api/internal/store"
)

// Re-exported store sentinels so handlers depend on one package for the
// gateway error taxonomy.
var (
	ErrLectureNotFound = store.ErrLectureNotFound
	ErrJobNotFound     = store.ErrJobNotFound
)

// ValidationError is a bad enqueue input; nothing was persisted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// TranscriptionService is the enqueue gateway for the transcription
// pipeline, plus the owner-scoped readback queries the UI polls.
type TranscriptionService struct {
	jobs     *store.JobStore
	lectures *store.LectureStore
}

func NewTranscriptionService(jobs *store.JobStore, lectures *store.LectureStore) *TranscriptionService {
	return &TranscriptionService{
		jobs:     jobs,
		lectures: lectures,
	}
}

// Enqueue validates the request, clears stale jobs for the lecture and
// inserts a fresh pending job. At most one pending-or-failed job survives per
// lecture; a job already processing is deliberately left alone (re-enqueueing
// mid-flight yields two live jobs whose reconciliations race last-write-wins
// on the lecture row).
func (s *TranscriptionService) Enqueue(ctx context.Context, userID string, req *model.EnqueueTranscriptionRequest) (*model.EnqueueTranscriptionResponse, error) {
	lectureID := strings.TrimSpace(req.OwnerID)
	audioPath := strings.TrimSpace(req.AudioRef)
	mimeType := strings.TrimSpace(req.AudioMimeType)

	if lectureID == "" || audioPath == "" {
		return nil, &ValidationError{Message: "ownerId and audioReference are required."}
	}

	// The caller must own the lecture; a foreign lecture reads as missing.
	if _, err := s.lectures.GetOwned(ctx, lectureID, userID); err != nil {
		return nil, err
	}

	// Remove any stale pending/failed jobs for this lecture before enqueuing.
	if err := s.jobs.DeleteStale(ctx, lectureID); err != nil {
		return nil, fmt.Errorf("failed to clear stale jobs: %w", err)
	}

	job := &model.TranscriptionJob{
		ID:            uuid.New().String(),
		LectureID:     lectureID,
		UserID:        userID,
		AudioPath:     audioPath,
		AudioMimeType: mimeType,
		Status:        model.JobStatusPending,
		Attempts:      0,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	// Mirror the pending state onto the lecture so the UI starts polling.
	// The job row is already durable; a mirror failure is logged, not fatal.
	if err := s.lectures.SetTranscriptionStatus(ctx, lectureID, model.JobStatusPending, nil); err != nil {
		log.Printf("Failed to mirror pending status onto lecture %s: %v", lectureID, err)
	}

	return &model.EnqueueTranscriptionResponse{
		JobID:  job.ID,
		Status: job.Status,
	}, nil
}

// GetJob returns a job's status, restricted to its requester.
func (s *TranscriptionService) GetJob(ctx context.Context, userID, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, store.ErrJobNotFound
	}

	return &model.JobStatusResponse{
		JobID:       job.ID,
		LectureID:   job.LectureID,
		Status:      job.Status,
		Attempts:    job.Attempts,
		Error:       job.LastError,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// GetLecture returns the owner record the UI polls, restricted to its owner.
func (s *TranscriptionService) GetLecture(ctx context.Context, userID, lectureID string) (*model.Lecture, error) {
	return s.lectures.GetOwned(ctx, lectureID, userID)
}
