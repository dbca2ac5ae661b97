package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/echostudy/api/internal/model"
)

func newTestLecture(userID string) *model.Lecture {
	return &model.Lecture{
		ID:     uuid.New().String(),
		UserID: userID,
		Title:  "Intro to Databases",
	}
}

func TestGetOwned_ForeignLectureReadsAsMissing(t *testing.T) {
	db := openTestDB(t)
	lectures := NewLectureStore(db)
	ctx := context.Background()

	lecture := newTestLecture("user-1")
	if err := lectures.Create(ctx, lecture); err != nil {
		t.Fatalf("failed to create lecture: %v", err)
	}

	if _, err := lectures.GetOwned(ctx, lecture.ID, "user-1"); err != nil {
		t.Errorf("expected owner to see the lecture: %v", err)
	}

	_, err := lectures.GetOwned(ctx, lecture.ID, "user-2")
	if !errors.Is(err, ErrLectureNotFound) {
		t.Errorf("expected ErrLectureNotFound for foreign user, got %v", err)
	}
}

func TestApplyTranscript(t *testing.T) {
	db := openTestDB(t)
	lectures := NewLectureStore(db)
	ctx := context.Background()

	prevError := "old failure"
	lecture := newTestLecture("user-1")
	lecture.TranscriptionStatus = model.JobStatusFailed
	lecture.TranscriptionError = &prevError
	lecture.Metadata = model.JSONMap{"foo": "bar"}
	if err := lectures.Create(ctx, lecture); err != nil {
		t.Fatalf("failed to create lecture: %v", err)
	}

	duration := 3
	metadata := lecture.Metadata.Merge(model.JSONMap{"model": "nova-3"})
	if err := lectures.ApplyTranscript(ctx, lecture.ID, "hello world", &duration, metadata); err != nil {
		t.Fatalf("ApplyTranscript failed: %v", err)
	}

	final, err := lectures.GetByID(ctx, lecture.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Transcript == nil || *final.Transcript != "hello world" {
		t.Errorf("expected transcript written, got %v", final.Transcript)
	}
	if final.TranscriptionStatus != model.JobStatusCompleted {
		t.Errorf("expected completed status, got %s", final.TranscriptionStatus)
	}
	if final.TranscriptionError != nil {
		t.Errorf("expected cleared error, got %q", *final.TranscriptionError)
	}
	if final.Duration == nil || *final.Duration != 3 {
		t.Errorf("expected duration 3, got %v", final.Duration)
	}
	if final.Metadata["foo"] != "bar" || final.Metadata["model"] != "nova-3" {
		t.Errorf("expected merged metadata, got %v", final.Metadata)
	}
}

func TestSetTranscriptionStatus(t *testing.T) {
	db := openTestDB(t)
	lectures := NewLectureStore(db)
	ctx := context.Background()

	lecture := newTestLecture("user-1")
	if err := lectures.Create(ctx, lecture); err != nil {
		t.Fatalf("failed to create lecture: %v", err)
	}

	message := "audio missing"
	if err := lectures.SetTranscriptionStatus(ctx, lecture.ID, model.JobStatusFailed, &message); err != nil {
		t.Fatalf("SetTranscriptionStatus failed: %v", err)
	}

	final, err := lectures.GetByID(ctx, lecture.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.TranscriptionStatus != model.JobStatusFailed {
		t.Errorf("expected failed status, got %s", final.TranscriptionStatus)
	}
	if final.TranscriptionError == nil || *final.TranscriptionError != message {
		t.Errorf("expected mirrored error message, got %v", final.TranscriptionError)
	}

	// Clearing the error with a nil message.
	if err := lectures.SetTranscriptionStatus(ctx, lecture.ID, model.JobStatusPending, nil); err != nil {
		t.Fatalf("SetTranscriptionStatus failed: %v", err)
	}
	final, err = lectures.GetByID(ctx, lecture.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.TranscriptionError != nil {
		t.Errorf("expected cleared error, got %q", *final.TranscriptionError)
	}
}
