package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TranscriptionJob is a durable background job: "transcribe this audio for
// this lecture". Rows are owned exclusively by the job store; the lecture
// row is a separate shared resource updated by the worker.
type TranscriptionJob struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	LectureID     string     `gorm:"index;size:36;not null" json:"lectureId"`
	UserID        string     `gorm:"index;size:36;not null" json:"userId"`
	AudioPath     string     `gorm:"size:512;not null" json:"audioPath"`
	AudioMimeType string     `gorm:"size:100" json:"audioMimeType,omitempty"`
	Status        JobStatus  `gorm:"index;size:20;not null" json:"status"`
	Attempts      int        `gorm:"default:0" json:"attempts"`
	LastError     *string    `gorm:"type:text" json:"error,omitempty"`
	Metadata      JSONMap    `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

func (TranscriptionJob) TableName() string {
	return "transcription_jobs"
}

// JSONMap stores a free-form JSON object in a single column.
type JSONMap map[string]interface{}

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONMap)
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}
}

// Merge returns a copy of j with the entries of other applied on top.
// Keys in other overwrite keys in j; unrelated keys are preserved.
func (j JSONMap) Merge(other JSONMap) JSONMap {
	merged := make(JSONMap, len(j)+len(other))
	for k, v := range j {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}
