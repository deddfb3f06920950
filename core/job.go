// Job is the orchestrator's unit of work: one artifact-generation request,
// owned end to end by a single goroutine from Submit through its terminal
// state. The shape mirrors an async task record (status enum,
// terminal-state helper, progress snapshot) but trades a queue-drained
// worker pool for one cancellable goroutine per job, since Submit must
// return a handle immediately rather than enqueue for a shared pool.
package core

import (
	"context"
	"time"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether the status ends the job's lifecycle.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Attempt records one retry/fallback ladder rung's outcome. A job's
// Attempts slice is carried verbatim into the Version metadata written on
// success.
type Attempt struct {
	ModelID         string    `json:"model_id"`
	ValidationScore int       `json:"validation_score,omitempty"`
	Errors          []string  `json:"errors,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at,omitempty"`
}

// JobOptions configures a single generation request.
type JobOptions struct {
	MaxRetries      int     `json:"max_retries"`
	UseValidation   bool    `json:"use_validation"`
	Temperature     float32 `json:"temperature"`
	ModelPreference string  `json:"model_preference,omitempty"`
}

// JobError is the structured failure recorded on a job that ends `failed`.
type JobError struct {
	Error      string `json:"error"`
	ErrorType  string `json:"error_type"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Job is the orchestrator's record of one artifact-generation request.
// It is mutated only by the goroutine running the orchestrator's runWorker for this job, plus
// the orchestrator's Submit/Cancel/evict paths, per the single-writer
// invariant described in the concurrency model.
type Job struct {
	JobID        string     `json:"job_id"`
	ArtifactType string     `json:"artifact_type"`
	FolderID     string     `json:"folder_id,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	ContextID    string     `json:"context_id,omitempty"`
	Options      JobOptions `json:"options"`

	Status   JobStatus `json:"status"`
	Progress float64   `json:"progress"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Attempts   []Attempt `json:"attempts,omitempty"`
	ArtifactID string    `json:"artifact_id,omitempty"`
	JobErr     *JobError `json:"error,omitempty"`

	// cancel is the cooperative-cancellation token signaled by Cancel.
	// The next suspension point in the worker's ladder loop observes it
	// and unwinds to JobStatusCancelled. Unexported: callers outside this
	// package interact with cancellation only through Orchestrator.Cancel.
	cancel context.CancelFunc
}

// NewJob creates a job in JobStatusInProgress with zero progress, the shape
// Submit inserts into the job table before spawning its worker.
func NewJob(jobID, artifactType string, opts JobOptions) *Job {
	return &Job{
		JobID:        jobID,
		ArtifactType: artifactType,
		Options:      opts,
		Status:       JobStatusInProgress,
		CreatedAt:    time.Now(),
	}
}

// WithCancel attaches a cancellation token to the job and returns the
// context the worker goroutine should run under.
func (j *Job) WithCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	return ctx
}

// Cancel signals the job's cancellation token. A no-op if the job carries
// none (e.g. it was never started) or has already terminated.
func (j *Job) Cancel() {
	if j.cancel != nil {
		j.cancel()
	}
}

// RecordAttempt appends a ladder rung outcome.
func (j *Job) RecordAttempt(a Attempt) {
	j.Attempts = append(j.Attempts, a)
}

// Complete marks the job completed and attaches the produced artifact id.
func (j *Job) Complete(artifactID string) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.ArtifactID = artifactID
	j.Progress = 100
	j.CompletedAt = &now
}

// Fail marks the job failed with structured error detail.
func (j *Job) Fail(errType, message, suggestion string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.JobErr = &JobError{Error: message, ErrorType: errType, Suggestion: suggestion}
	j.CompletedAt = &now
}

// MarkCancelled marks the job cancelled; called by the worker goroutine
// once it observes the cancellation token at a suspension point.
func (j *Job) MarkCancelled() {
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
}
