package worker

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/echostudy/api/internal/client"
	"github.com/echostudy/api/internal/model"
	"github.com/echostudy/api/internal/store"
)

// TranscriptionWorker drains pending jobs: claim, download audio, transcribe,
// reconcile the result into the lecture row and finalize the job. Each
// invocation is stateless and rediscovers work from the job store; there is
// no long-lived scheduler thread.
type TranscriptionWorker struct {
	jobs        *store.JobStore
	lectures    *store.LectureStore
	transcriber client.Transcriber
	storage     client.StorageClient
}

// NewTranscriptionWorker creates a new worker over the given collaborators.
func NewTranscriptionWorker(jobs *store.JobStore, lectures *store.LectureStore, transcriber client.Transcriber, storage client.StorageClient) *TranscriptionWorker {
	return &TranscriptionWorker{
		jobs:        jobs,
		lectures:    lectures,
		transcriber: transcriber,
		storage:     storage,
	}
}

// RunBatch claims and fully processes up to limit jobs, one at a time.
// Per-job failures are reconciled into the job row and never abort the batch;
// only a failure of job selection itself is returned as an error.
func (w *TranscriptionWorker) RunBatch(ctx context.Context, limit int) (*model.WorkerRunResponse, error) {
	var outcomes []model.JobOutcome

	for i := 0; i < limit; i++ {
		job, err := w.jobs.ClaimNext(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch next job: %w", err)
		}
		if job == nil {
			break
		}

		log.Printf("Starting transcription job %s (attempt %d)", job.ID, job.Attempts)

		if err := w.processJob(ctx, job); err != nil {
			w.failJob(ctx, job, err.Error())
			outcomes = append(outcomes, model.JobOutcome{
				JobID:  job.ID,
				Status: model.JobStatusFailed,
				Error:  err.Error(),
			})
			continue
		}

		log.Printf("Transcription job %s completed", job.ID)
		outcomes = append(outcomes, model.JobOutcome{
			JobID:  job.ID,
			Status: model.JobStatusCompleted,
		})
	}

	if len(outcomes) == 0 {
		return &model.WorkerRunResponse{
			Processed: 0,
			Message:   "No pending jobs.",
		}, nil
	}

	return &model.WorkerRunResponse{
		Processed: len(outcomes),
		Jobs:      outcomes,
	}, nil
}

// processJob runs one claimed job through to the completed state. Any
// returned error is the human-readable cause recorded on the job.
func (w *TranscriptionWorker) processJob(ctx context.Context, job *model.TranscriptionJob) error {
	if w.storage == nil {
		return fmt.Errorf("audio storage is not configured")
	}

	audio, err := w.storage.Download(ctx, job.AudioPath)
	if err != nil {
		return err
	}

	result, err := w.transcriber.Transcribe(ctx, audio, job.AudioMimeType, client.TranscribeOptions{})
	if err != nil {
		return err
	}

	return w.reconcileSuccess(ctx, job, result)
}

// reconcileSuccess writes the transcript onto the lecture and then finalizes
// the job. The lecture write comes first: if it fails the error propagates
// and the job is marked failed rather than silently completed.
func (w *TranscriptionWorker) reconcileSuccess(ctx context.Context, job *model.TranscriptionJob, result *client.TranscriptionResult) error {
	lecture, err := w.lectures.GetByID(ctx, job.LectureID)
	if err != nil {
		return fmt.Errorf("failed to load lecture %s: %w", job.LectureID, err)
	}

	metadata := lecture.Metadata.Merge(resultMetadata(result))

	var duration *int
	if result.Duration != nil {
		rounded := int(math.Round(*result.Duration))
		duration = &rounded
	}

	if err := w.lectures.ApplyTranscript(ctx, job.LectureID, result.Transcript, duration, metadata); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}

	extra := model.JSONMap{"deepgram_request_id": requestIDValue(result)}
	if err := w.jobs.MarkCompleted(ctx, job, extra); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	return nil
}

// failJob finalizes a failed attempt. The job row is the source of truth and
// is written first; mirroring onto the lecture is best-effort.
func (w *TranscriptionWorker) failJob(ctx context.Context, job *model.TranscriptionJob, message string) {
	log.Printf("Transcription job %s failed: %s", job.ID, message)

	if err := w.jobs.MarkFailed(ctx, job.ID, message); err != nil {
		log.Printf("Failed to mark job %s as failed: %v", job.ID, err)
	}
	if err := w.lectures.SetTranscriptionStatus(ctx, job.LectureID, model.JobStatusFailed, &message); err != nil {
		log.Printf("Failed to mirror failure onto lecture %s: %v", job.LectureID, err)
	}
}

// resultMetadata flattens a transcription result into the keys merged onto
// the lecture's metadata map. Absent values stay absent instead of writing
// empty strings.
func resultMetadata(result *client.TranscriptionResult) model.JSONMap {
	metadata := model.JSONMap{}
	if result.Model != "" {
		metadata["model"] = result.Model
	}
	if result.Duration != nil {
		metadata["duration"] = *result.Duration
	}
	if result.Confidence != nil {
		metadata["confidence"] = *result.Confidence
	}
	if result.Language != "" {
		metadata["language"] = result.Language
	}
	if result.Summary != "" {
		metadata["summary"] = result.Summary
	}
	metadata["deepgram_request_id"] = requestIDValue(result)
	return metadata
}

func requestIDValue(result *client.TranscriptionResult) interface{} {
	if result.RequestID == "" {
		return nil
	}
	return result.RequestID
}
