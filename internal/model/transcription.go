package model

import "time"

// EnqueueTranscriptionRequest is the body of POST /api/transcriptions.
// ownerId is the lecture the transcript belongs to; audioReference is the
// blob-store key of the uploaded audio.
type EnqueueTranscriptionRequest struct {
	OwnerID       string `json:"ownerId" validate:"required"`
	AudioRef      string `json:"audioReference" validate:"required"`
	AudioMimeType string `json:"audioMimeType,omitempty"`
}

// EnqueueTranscriptionResponse confirms a queued job.
type EnqueueTranscriptionResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// JobStatusResponse is the readback shape for GET /api/transcriptions/:jobId.
type JobStatusResponse struct {
	JobID       string     `json:"jobId"`
	LectureID   string     `json:"lectureId"`
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// JobOutcome reports one processed job in a worker invocation.
type JobOutcome struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// WorkerRunResponse is the body of POST /internal/worker/run.
type WorkerRunResponse struct {
	Processed int          `json:"processed"`
	Message   string       `json:"message,omitempty"`
	Jobs      []JobOutcome `json:"jobs,omitempty"`
}
