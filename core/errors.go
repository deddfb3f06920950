package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is().
// These name the error kinds a job's worker can raise; they are generic so
// callers can wrap them with Error for context.
var (
	// Request-shape errors
	ErrInvalidRequest = errors.New("invalid request")

	// Context-build errors
	ErrContextBuildFailed = errors.New("context build failed")

	// Model backend errors (ladder-recoverable)
	ErrModelUnavailable = errors.New("model unavailable")
	ErrModelTimeout     = errors.New("model timeout")
	ErrModelError       = errors.New("model error")

	// Validation errors
	ErrValidationBelowThreshold = errors.New("validation below threshold")
	ErrFailedButBest            = errors.New("ladder exhausted, best candidate did not validate")

	// Persistence errors
	ErrPersistence = errors.New("persistence error")

	// Cache errors (context provider's Redis-backed Memory)
	ErrCacheUnavailable = errors.New("cache backend unavailable")

	// Job lifecycle errors
	ErrCancelled          = errors.New("cancelled")
	ErrJobNotFound        = errors.New("job not found")
	ErrJobNotCancellable  = errors.New("job not cancellable")
	ErrArtifactNotFound   = errors.New("artifact not found")
	ErrVersionNotFound    = errors.New("version not found")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// Resilience errors
	ErrCircuitOpen = errors.New("circuit breaker open")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// State errors
	ErrAlreadyStarted = errors.New("already started")
	ErrNotInitialized = errors.New("not initialized")
)

// Error provides structured error information with context.
// It implements the error interface and supports error wrapping.
type Error struct {
	Op      string // Operation that failed (e.g., "generation.Submit")
	Kind    string // Error kind (e.g., "model", "validation", "persistence")
	ID      string // Optional ID of the entity involved (job_id, artifact_id)
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithID attaches an entity id and returns the same *Error for chaining.
func (e *Error) WithID(id string) *Error {
	e.ID = id
	return e
}

// WithMessage attaches a human message and returns the same *Error for chaining.
func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

// NewError creates a new Error wrapping err for operation op.
func NewError(op, kind string, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// IsRetryable reports whether the ladder should advance to the next rung
// rather than surface the error to the job's terminal state.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrModelUnavailable) ||
		errors.Is(err, ErrModelTimeout) ||
		errors.Is(err, ErrModelError) ||
		errors.Is(err, ErrContextBuildFailed) ||
		errors.Is(err, ErrCircuitOpen)
}

// IsTerminal reports whether err should end the job immediately without
// further ladder rungs.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrCancelled)
}

// IsNotFound checks if an error represents a "not found" condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrArtifactNotFound) ||
		errors.Is(err, ErrVersionNotFound)
}

// IsConfigurationError checks if an error is configuration-related.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// IsStateError reports whether err reflects a programming error in how a
// component was used (e.g. double-start) rather than an infrastructure
// failure.
func IsStateError(err error) bool {
	return errors.Is(err, ErrAlreadyStarted) ||
		errors.Is(err, ErrNotInitialized)
}
