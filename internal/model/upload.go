package model

import "time"

// UploadAudioResponse represents the response for a lecture audio upload.
// AudioPath is the blob-store key to pass to the transcription enqueue call.
type UploadAudioResponse struct {
	AudioPath string    `json:"audioPath"`
	MimeType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}
