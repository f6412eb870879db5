package metrics

import (
	"time"
)

// Collector defines the interface for collecting client metrics.
// Implementations can export metrics to various backends (Prometheus, memory for tests).
type Collector interface {
	// Backend calls
	RecordRequest(endpoint string, status int, duration time.Duration)
	RecordRequestError(endpoint string, errorType string)

	// Circuit breaker
	RecordCircuitState(name string, state CircuitState)

	// Notification dispatcher
	RecordQueueDepth(queue string, depth int)
	RecordNotificationDropped(queue string)
	RecordNotificationDelivered(queue string, success bool, duration time.Duration)

	// State containers
	RecordStaleResponse(domain string)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the backend has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is the default collector when metrics are not needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordRequest(endpoint string, status int, duration time.Duration) {}

func (NoOpCollector) RecordRequestError(endpoint string, errorType string) {}

func (NoOpCollector) RecordCircuitState(name string, state CircuitState) {}

func (NoOpCollector) RecordQueueDepth(queue string, depth int) {}

func (NoOpCollector) RecordNotificationDropped(queue string) {}

func (NoOpCollector) RecordNotificationDelivered(queue string, success bool, duration time.Duration) {
}

func (NoOpCollector) RecordStaleResponse(domain string) {}
