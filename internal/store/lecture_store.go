package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/echostudy/api/internal/model"
)

// ErrLectureNotFound is returned when a lecture id does not exist or is not
// visible to the requesting user.
var ErrLectureNotFound = errors.New("lecture not found")

// LectureStore reads and writes the lecture rows the pipeline reconciles
// into. Only the transcription-related columns are touched here; the rest of
// the row belongs to the application layer.
type LectureStore struct {
	db *gorm.DB
}

func NewLectureStore(db *gorm.DB) *LectureStore {
	return &LectureStore{db: db}
}

// Create inserts a lecture row.
func (s *LectureStore) Create(ctx context.Context, lecture *model.Lecture) error {
	return s.db.WithContext(ctx).Create(lecture).Error
}

// GetByID fetches a lecture by id.
func (s *LectureStore) GetByID(ctx context.Context, lectureID string) (*model.Lecture, error) {
	var lecture model.Lecture
	if err := s.db.WithContext(ctx).Where("id = ?", lectureID).First(&lecture).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLectureNotFound
		}
		return nil, err
	}
	return &lecture, nil
}

// GetOwned fetches a lecture only if it belongs to userID. A row owned by
// someone else is indistinguishable from a missing row on purpose.
func (s *LectureStore) GetOwned(ctx context.Context, lectureID, userID string) (*model.Lecture, error) {
	var lecture model.Lecture
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lectureID, userID).
		First(&lecture).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLectureNotFound
		}
		return nil, err
	}
	return &lecture, nil
}

// SetTranscriptionStatus mirrors a job state change onto the lecture row.
// Passing a nil message clears the error column.
func (s *LectureStore) SetTranscriptionStatus(ctx context.Context, lectureID string, status model.JobStatus, message *string) error {
	return s.db.WithContext(ctx).
		Model(&model.Lecture{}).
		Where("id = ?", lectureID).
		Updates(map[string]interface{}{
			"transcription_status": status,
			"transcription_error":  message,
		}).Error
}

// ApplyTranscript writes a successful transcription result onto the lecture:
// transcript text, rounded duration, the merged metadata map, a completed
// status and a cleared error.
func (s *LectureStore) ApplyTranscript(ctx context.Context, lectureID, transcript string, duration *int, metadata model.JSONMap) error {
	return s.db.WithContext(ctx).
		Model(&model.Lecture{}).
		Where("id = ?", lectureID).
		Updates(map[string]interface{}{
			"transcript":           transcript,
			"duration":             duration,
			"metadata":             metadata,
			"transcription_status": model.JobStatusCompleted,
			"transcription_error":  nil,
		}).Error
}
