package job

import (
	"context"
	"encoding/json"
	"time"
)

// JobType represents the pipeline stage a job runs
type JobType string

const (
	JobTranscription JobType = "transcription"
	JobDiarization   JobType = "diarization"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job represents a stage queued for one session
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Status      JobStatus       `json:"status"`
	SessionID   string          `json:"session_id"`
	Params      json.RawMessage `json:"params"`
	Progress    float64         `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Done reports whether the job reached a final state.
func (j *Job) Done() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// JobHandler processes a job. A handler may set job.Result; it is stored when
// the handler returns nil.
type JobHandler func(ctx context.Context, job *Job, updateProgress func(float64)) error

// Notifier is told about every status or progress change.
type Notifier func(job *Job)
