package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/notekiln/forge/telemetry"
)

// TelemetryMetrics implements MetricsCollector using the telemetry package.
// CreateCircuitBreaker installs this automatically once telemetry has been
// initialized.
type TelemetryMetrics struct{}

// NewTelemetryMetrics creates a metrics collector that uses the telemetry API
func NewTelemetryMetrics() *TelemetryMetrics {
	return &TelemetryMetrics{}
}

// RecordSuccess records a successful circuit breaker execution
func (t *TelemetryMetrics) RecordSuccess(name string) {
	telemetry.Counter("circuit_breaker.calls", "name", name, "state", "success")
}

// RecordFailure records a failed circuit breaker execution
func (t *TelemetryMetrics) RecordFailure(name string, errorType string) {
	telemetry.Counter("circuit_breaker.calls", "name", name, "state", "failure")
	telemetry.Counter("circuit_breaker.failures", "name", name, "error_type", errorType)
}

// RecordStateChange records a circuit breaker state transition
func (t *TelemetryMetrics) RecordStateChange(name string, from, to string) {
	telemetry.Counter("circuit_breaker.state_changes",
		"name", name,
		"from_state", from,
		"to_state", to)

	// Also update the current state gauge
	stateValue := 0.0
	switch to {
	case "half-open":
		stateValue = 0.5
	case "open":
		stateValue = 1.0
	}
	telemetry.Gauge("circuit_breaker.current_state", stateValue, "name", name)
}

// RecordRejection records a request rejected by an open circuit
func (t *TelemetryMetrics) RecordRejection(name string) {
	telemetry.Counter("circuit_breaker.rejected", "name", name)
}

// NewCircuitBreakerWithTelemetry builds a circuit breaker wired to
// TelemetryMetrics directly, for callers that want telemetry on
// unconditionally rather than auto-detected the way CreateCircuitBreaker
// does it.
func NewCircuitBreakerWithTelemetry(name string) (*CircuitBreaker, error) {
	config := DefaultConfig()
	config.Name = name
	config.Metrics = NewTelemetryMetrics()

	return NewCircuitBreaker(config)
}

// RetryWithTelemetry performs retry with telemetry tracking
func RetryWithTelemetry(ctx context.Context, operation string, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	maxAttempts := config.MaxAttempts
	start := time.Now()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		telemetry.Counter("retry.attempts",
			"operation", operation,
			"attempt_number", fmt.Sprintf("%d", attempt))

		err := fn()

		if err == nil {
			telemetry.Counter("retry.success",
				"operation", operation,
				"final_attempt", fmt.Sprintf("%d", attempt))

			duration := float64(time.Since(start).Milliseconds())
			telemetry.Histogram("retry.duration_ms", duration,
				"operation", operation,
				"status", "success")

			return nil
		}

		if attempt == maxAttempts {
			telemetry.Counter("retry.failures",
				"operation", operation,
				"error_type", fmt.Sprintf("%T", err))

			duration := float64(time.Since(start).Milliseconds())
			telemetry.Histogram("retry.duration_ms", duration,
				"operation", operation,
				"status", "failure")

			return err
		}

		delay := config.InitialDelay * time.Duration(float64(attempt-1)*config.BackoffFactor)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}

		telemetry.Histogram("retry.backoff_ms", float64(delay.Milliseconds()),
			"operation", operation,
			"strategy", "exponential")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("retry exhausted after %d attempts", maxAttempts)
}
