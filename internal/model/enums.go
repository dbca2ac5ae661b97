package model

// JobStatus is the lifecycle state of a transcription job. The lecture row
// mirrors the same values in its transcription_status column.
//
// Valid transitions: pending -> processing (atomic claim only),
// processing -> completed | failed. Completed and failed are terminal; a
// retry is always a brand-new job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
