// Package eventbus fans job-scoped generation events out to subscribers.
// Each job_id owns one topic; subscribers attach before or during a job
// and receive events in emission order, with non-terminal events dropped
// for a subscriber that falls behind rather than blocking the publisher.
package eventbus

import "time"

// Kind is the event discriminant a job publishes over its lifetime.
type Kind string

const (
	KindStarted  Kind = "started"
	KindProgress Kind = "progress"
	KindChunk    Kind = "chunk"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// Terminal reports whether this kind ends a job's event stream. The bus
// caches the terminal event per topic so a late subscriber still observes
// at least one event.
func (k Kind) Terminal() bool {
	return k == KindComplete || k == KindError
}

// Event is one published update for a single job_id. Only the fields
// relevant to Kind are populated; the rest carry zero values.
type Event struct {
	JobID     string    `json:"job_id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	Progress          float64  `json:"progress,omitempty"`
	Message           string   `json:"message,omitempty"`
	QualityPrediction *float64 `json:"quality_prediction,omitempty"`

	Chunk string `json:"chunk,omitempty"`

	ArtifactID      string  `json:"artifact_id,omitempty"`
	ValidationScore float64 `json:"validation_score,omitempty"`
	IsValid         bool    `json:"is_valid,omitempty"`
	Artifact        string  `json:"artifact,omitempty"`

	Error string `json:"error,omitempty"`
}
