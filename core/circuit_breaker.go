// Package core defines fundamental abstractions shared across forge.
//
// This file carries the CircuitBreaker configuration shape used by the
// ladder's per-rung breaker (the CircuitBreaker interface itself lives in
// interfaces.go, next to the other pipeline-wide contracts).
package core

import "time"

// CircuitBreakerParams configures a circuit breaker instance. It complements
// CircuitBreakerConfig in config.go with implementation-specific fields like
// Logger and Telemetry that don't belong in a serialized config document.
type CircuitBreakerParams struct {
	// Name identifies the circuit breaker (for logging/metrics), typically
	// the ladder rung name, e.g. "local-primary" or "cloud-fallback".
	Name string

	// Config embeds the basic configuration.
	Config CircuitBreakerConfig

	// Optional: Logger for circuit breaker events.
	Logger Logger

	// Optional: Telemetry for metrics.
	Telemetry Telemetry
}

// DefaultCircuitBreakerParams returns sensible defaults for circuit breaker parameters.
func DefaultCircuitBreakerParams(name string) CircuitBreakerParams {
	return CircuitBreakerParams{
		Name: name,
		Config: CircuitBreakerConfig{
			Enabled:          true,
			Threshold:        5,
			Timeout:          30 * time.Second,
			HalfOpenRequests: 3,
		},
	}
}
