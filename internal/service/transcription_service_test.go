package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/echostudy/api/internal/model"
	"github.com/echostudy/api/internal/store"
)

func setupService(t *testing.T) (*TranscriptionService, *store.JobStore, *store.LectureStore) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access underlying database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := store.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	jobs := store.NewJobStore(db)
	lectures := store.NewLectureStore(db)
	return NewTranscriptionService(jobs, lectures), jobs, lectures
}

func seedLecture(t *testing.T, lectures *store.LectureStore, userID string) *model.Lecture {
	t.Helper()
	lecture := &model.Lecture{
		ID:     uuid.New().String(),
		UserID: userID,
		Title:  "Operating Systems, Week 3",
	}
	if err := lectures.Create(context.Background(), lecture); err != nil {
		t.Fatalf("failed to seed lecture: %v", err)
	}
	return lecture
}

func TestEnqueue_MissingFields(t *testing.T) {
	svc, _, _ := setupService(t)

	cases := []model.EnqueueTranscriptionRequest{
		{},
		{OwnerID: "lecture-1"},
		{AudioRef: "user-1/audio.mp3"},
		{OwnerID: "   ", AudioRef: "user-1/audio.mp3"},
	}
	for _, req := range cases {
		_, err := svc.Enqueue(context.Background(), "user-1", &req)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("expected ValidationError for %+v, got %v", req, err)
			continue
		}
		if validationErr.Message != "ownerId and audioReference are required." {
			t.Errorf("unexpected validation message: %q", validationErr.Message)
		}
	}
}

func TestEnqueue_LectureNotFound(t *testing.T) {
	svc, _, _ := setupService(t)

	req := model.EnqueueTranscriptionRequest{
		OwnerID:  uuid.New().String(),
		AudioRef: "user-1/audio.mp3",
	}
	_, err := svc.Enqueue(context.Background(), "user-1", &req)
	if !errors.Is(err, ErrLectureNotFound) {
		t.Errorf("expected ErrLectureNotFound, got %v", err)
	}
}

func TestEnqueue_ForeignLecture(t *testing.T) {
	svc, _, lectures := setupService(t)
	lecture := seedLecture(t, lectures, "someone-else")

	req := model.EnqueueTranscriptionRequest{
		OwnerID:  lecture.ID,
		AudioRef: "user-1/audio.mp3",
	}
	_, err := svc.Enqueue(context.Background(), "user-1", &req)
	if !errors.Is(err, ErrLectureNotFound) {
		t.Errorf("expected ErrLectureNotFound for foreign lecture, got %v", err)
	}
}

func TestEnqueue_Success(t *testing.T) {
	svc, jobs, lectures := setupService(t)
	lecture := seedLecture(t, lectures, "user-1")
	ctx := context.Background()

	resp, err := svc.Enqueue(ctx, "user-1", &model.EnqueueTranscriptionRequest{
		OwnerID:       lecture.ID,
		AudioRef:      "user-1/audio.mp3",
		AudioMimeType: "audio/wav",
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if resp.Status != model.JobStatusPending {
		t.Errorf("expected pending status, got %s", resp.Status)
	}

	job, err := jobs.GetByID(ctx, resp.JobID)
	if err != nil {
		t.Fatalf("expected durable job row: %v", err)
	}
	if job.LectureID != lecture.ID || job.UserID != "user-1" {
		t.Errorf("job row has wrong ownership: %+v", job)
	}
	if job.AudioMimeType != "audio/wav" {
		t.Errorf("expected mime hint persisted, got %q", job.AudioMimeType)
	}

	refreshed, err := lectures.GetByID(ctx, lecture.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if refreshed.TranscriptionStatus != model.JobStatusPending {
		t.Errorf("expected pending mirrored onto lecture, got %s", refreshed.TranscriptionStatus)
	}
}

func TestEnqueue_ReplacesStaleJobs(t *testing.T) {
	svc, jobs, lectures := setupService(t)
	lecture := seedLecture(t, lectures, "user-1")
	ctx := context.Background()

	stale := &model.TranscriptionJob{
		ID:        uuid.New().String(),
		LectureID: lecture.ID,
		UserID:    "user-1",
		AudioPath: "user-1/old.mp3",
		Status:    model.JobStatusFailed,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	if err := jobs.Create(ctx, stale); err != nil {
		t.Fatalf("failed to seed stale job: %v", err)
	}

	resp, err := svc.Enqueue(ctx, "user-1", &model.EnqueueTranscriptionRequest{
		OwnerID:  lecture.ID,
		AudioRef: "user-1/new.mp3",
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if _, err := jobs.GetByID(ctx, stale.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected stale job removed, got %v", err)
	}

	remaining, err := jobs.ListByLecture(ctx, lecture.ID)
	if err != nil {
		t.Fatalf("ListByLecture failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != resp.JobID {
		t.Errorf("expected exactly the fresh job, got %d jobs", len(remaining))
	}
}

func TestGetJob_RequesterScoped(t *testing.T) {
	svc, jobs, lectures := setupService(t)
	lecture := seedLecture(t, lectures, "user-1")
	ctx := context.Background()

	job := &model.TranscriptionJob{
		ID:        uuid.New().String(),
		LectureID: lecture.ID,
		UserID:    "user-1",
		AudioPath: "user-1/audio.mp3",
		Status:    model.JobStatusPending,
	}
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}

	status, err := svc.GetJob(ctx, "user-1", job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if status.JobID != job.ID || status.Status != model.JobStatusPending {
		t.Errorf("unexpected status response: %+v", status)
	}

	if _, err := svc.GetJob(ctx, "user-2", job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound for foreign requester, got %v", err)
	}
}
