package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/echostudy/api/internal/model"
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("job not found")

// claimAttempts bounds how many times ClaimNext re-selects a candidate after
// losing the claim race to a concurrent worker within one call.
const claimAttempts = 3

// JobStore is the data access layer for transcription jobs. It is the only
// writer of the transcription_jobs table.
type JobStore struct {
	db *gorm.DB
}

func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

// Create inserts a new job row.
func (s *JobStore) Create(ctx context.Context, job *model.TranscriptionJob) error {
	return s.db.WithContext(ctx).Create(job).Error
}

// GetByID fetches a job by id.
func (s *JobStore) GetByID(ctx context.Context, jobID string) (*model.TranscriptionJob, error) {
	var job model.TranscriptionJob
	if err := s.db.WithContext(ctx).Where("id = ?", jobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListByLecture returns all jobs for a lecture, oldest first.
func (s *JobStore) ListByLecture(ctx context.Context, lectureID string) ([]*model.TranscriptionJob, error) {
	var jobs []*model.TranscriptionJob
	err := s.db.WithContext(ctx).
		Where("lecture_id = ?", lectureID).
		Order("created_at ASC, id ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// DeleteStale removes pending and failed jobs for a lecture so a fresh
// enqueue leaves exactly one live job per lecture. Completed and processing
// jobs are left in place.
func (s *JobStore) DeleteStale(ctx context.Context, lectureID string) error {
	return s.db.WithContext(ctx).
		Where("lecture_id = ? AND status IN ?", lectureID, []model.JobStatus{model.JobStatusPending, model.JobStatusFailed}).
		Delete(&model.TranscriptionJob{}).Error
}

// ClaimNext selects the oldest pending job and atomically transitions it to
// processing. The transition is a single conditional update guarded on the
// row still being pending, so of N concurrent claimers exactly one wins and
// the rest see zero rows affected. Returns nil with no error when there is
// no pending job, or when every candidate was claimed by someone else first.
func (s *JobStore) ClaimNext(ctx context.Context) (*model.TranscriptionJob, error) {
	for i := 0; i < claimAttempts; i++ {
		var candidate model.TranscriptionJob
		err := s.db.WithContext(ctx).
			Where("status = ?", model.JobStatusPending).
			Order("created_at ASC, id ASC").
			First(&candidate).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}

		now := time.Now()
		res := s.db.WithContext(ctx).
			Model(&model.TranscriptionJob{}).
			Where("id = ? AND status = ?", candidate.ID, model.JobStatusPending).
			Updates(map[string]interface{}{
				"status":     model.JobStatusProcessing,
				"started_at": now,
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": nil,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race; another worker claimed this row. Re-select.
			continue
		}

		return s.GetByID(ctx, candidate.ID)
	}

	return nil, nil
}

// MarkCompleted finalizes a processing job. Extra metadata is merged into the
// job's accumulator map, preserving anything recorded before the run.
func (s *JobStore) MarkCompleted(ctx context.Context, job *model.TranscriptionJob, extra model.JSONMap) error {
	now := time.Now()
	return s.db.WithContext(ctx).
		Model(&model.TranscriptionJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":       model.JobStatusCompleted,
			"completed_at": now,
			"last_error":   nil,
			"metadata":     job.Metadata.Merge(extra),
		}).Error
}

// MarkFailed finalizes a processing job with the human-readable cause. The
// message is the only diagnostic the end user ever sees, so callers must not
// pass a generic placeholder.
func (s *JobStore) MarkFailed(ctx context.Context, jobID, message string) error {
	now := time.Now()
	return s.db.WithContext(ctx).
		Model(&model.TranscriptionJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":       model.JobStatusFailed,
			"completed_at": now,
			"last_error":   message,
		}).Error
}
