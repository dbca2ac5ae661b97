package model

import "time"

// Lecture is the owning record a transcription job reconciles into. The
// transcript, duration, metadata, transcription_status and
// transcription_error columns are written only by the worker from this
// pipeline's perspective; the UI polls them until the status is terminal.
type Lecture struct {
	ID                  string    `gorm:"primaryKey;size:36" json:"id"`
	UserID              string    `gorm:"index;size:36;not null" json:"userId"`
	Title               string    `gorm:"size:255" json:"title"`
	Transcript          *string   `gorm:"type:longtext" json:"transcript,omitempty"`
	TranscriptionStatus JobStatus `gorm:"size:20" json:"transcriptionStatus,omitempty"`
	TranscriptionError  *string   `gorm:"type:text" json:"transcriptionError,omitempty"`
	Duration            *int      `json:"duration,omitempty"`
	Metadata            JSONMap   `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func (Lecture) TableName() string {
	return "lectures"
}
