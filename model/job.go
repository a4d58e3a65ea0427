package model

import (
	"encoding/json"
	"time"
)

// ExtractionJob represents an asynchronous menu-photo extraction job.
// The row is created when a user submits an image and mutated only by the
// extraction worker; clients just read it.
type ExtractionJob struct {
	ID           string          `json:"job_id"`
	UserID       string          `json:"-"`
	MenuID       string          `json:"menu_id"`
	ImageURL     string          `json:"image_url,omitempty"`
	Status       string          `json:"status"` // queued, processing, completed, failed
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMsg     string          `json:"error,omitempty"`
	RetryCount   int             `json:"-"`
	ProcessingMS int64           `json:"processing_ms,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// ExtractionJob status constants
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Terminal reports whether a job status is final
func Terminal(status string) bool {
	return status == JobCompleted || status == JobFailed
}
