package resilience

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if !config.Enabled {
		t.Error("Expected breaker enabled by default")
	}

	if config.Timeout != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %v", config.Timeout)
	}

	if config.CircuitBreakerConfig.MaxRequests != 1 {
		t.Errorf("Expected MaxRequests 1, got %d", config.CircuitBreakerConfig.MaxRequests)
	}

	if config.CircuitBreakerConfig.ConsecutiveFailures != 5 {
		t.Errorf("Expected 5 consecutive failures, got %d", config.CircuitBreakerConfig.ConsecutiveFailures)
	}
}

func TestConfig_With(t *testing.T) {
	config := DefaultConfig()
	newConfig := config.WithTimeout(2 * time.Second).
		WithOpenTimeout(time.Second).
		WithConsecutiveFailures(2)

	if newConfig.Timeout != 2*time.Second {
		t.Errorf("Expected timeout 2s, got %v", newConfig.Timeout)
	}
	if newConfig.CircuitBreakerConfig.OpenTimeout != time.Second {
		t.Errorf("Expected open timeout 1s, got %v", newConfig.CircuitBreakerConfig.OpenTimeout)
	}
	if newConfig.CircuitBreakerConfig.ConsecutiveFailures != 2 {
		t.Errorf("Expected threshold 2, got %d", newConfig.CircuitBreakerConfig.ConsecutiveFailures)
	}

	// Original should be unchanged
	if config.Timeout != 10*time.Second {
		t.Errorf("Original config should be unchanged, got %v", config.Timeout)
	}
}
