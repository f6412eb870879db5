package resilience

import (
	"time"
)

// Config configures the protection applied to backend calls.
type Config struct {
	// Enabled turns the circuit breaker on. The timeout applies either way.
	Enabled bool

	// Timeout bounds a single backend call
	Timeout time.Duration

	// CircuitBreakerConfig configures the circuit breaker behavior
	CircuitBreakerConfig CircuitBreakerConfig
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// MaxRequests is the maximum number of requests allowed to pass through
	// when the CircuitBreaker is half-open. Default: 1
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for the CircuitBreaker
	// to clear the internal counts. If Interval is 0, it never clears.
	Interval time.Duration

	// Timeout is the period of the open state after which the state becomes half-open.
	OpenTimeout time.Duration

	// ConsecutiveFailures trips the breaker when reached. Default: 5
	ConsecutiveFailures uint32
}

// Counts holds the numbers of requests and their successes/failures.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// DefaultConfig matches the client's fixed 10s request timeout.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Timeout: 10 * time.Second,
		CircuitBreakerConfig: CircuitBreakerConfig{
			MaxRequests:         1,
			Interval:            60 * time.Second,
			OpenTimeout:         30 * time.Second,
			ConsecutiveFailures: 5,
		},
	}
}

// WithTimeout returns a copy of the config with the specified timeout.
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

// WithOpenTimeout returns a copy of the config with the specified circuit open period.
func (c Config) WithOpenTimeout(timeout time.Duration) Config {
	c.CircuitBreakerConfig.OpenTimeout = timeout
	return c
}

// WithConsecutiveFailures returns a copy of the config with the specified trip threshold.
func (c Config) WithConsecutiveFailures(n uint32) Config {
	c.CircuitBreakerConfig.ConsecutiveFailures = n
	return c
}
