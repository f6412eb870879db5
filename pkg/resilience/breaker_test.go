package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"bank-client/pkg/bankerr"
	"bank-client/pkg/metrics"
	"bank-client/pkg/metrics/memory"
)

func TestBreaker_Success(t *testing.T) {
	b := NewBreaker("test", DefaultConfig())

	called := false
	err := b.Do(context.Background(), "op", func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !called {
		t.Error("fn was not called")
	}
	if b.Name() != "test" {
		t.Errorf("Expected name 'test', got %q", b.Name())
	}
}

func TestBreaker_Timeout(t *testing.T) {
	b := NewBreaker("test", DefaultConfig().WithTimeout(20*time.Millisecond))

	err := b.Do(context.Background(), "account.fetch", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, bankerr.ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
}

func TestBreaker_OpensOnTransientFailures(t *testing.T) {
	collector := memory.NewMemoryCollector()
	config := DefaultConfig().WithConsecutiveFailures(3).WithOpenTimeout(time.Minute)
	b := NewBreakerWithMetrics("bank-api", config, collector)

	var calls int32
	failing := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return bankerr.New("op", bankerr.ErrNetwork, "connection refused")
	}

	for i := 0; i < 3; i++ {
		if err := b.Do(context.Background(), "op", failing); !errors.Is(err, bankerr.ErrNetwork) {
			t.Fatalf("Call %d: expected network error, got %v", i, err)
		}
	}

	if b.State() != metrics.CircuitOpen {
		t.Fatalf("Expected open breaker, got %v", b.State())
	}

	err := b.Do(context.Background(), "op", failing)
	if !errors.Is(err, bankerr.ErrCircuitOpen) {
		t.Fatalf("Expected ErrCircuitOpen, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Open breaker must not run fn, got %d calls", calls)
	}
	if collector.CircuitState("bank-api") != metrics.CircuitOpen {
		t.Error("Expected state change reported to metrics")
	}
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	b := NewBreaker("bank-api", DefaultConfig().WithConsecutiveFailures(2))

	for i := 0; i < 5; i++ {
		err := b.Do(context.Background(), "auth.login", func(ctx context.Context) error {
			return bankerr.FromStatus("auth.login", 401, "")
		})
		if !errors.Is(err, bankerr.ErrUnauthorized) {
			t.Fatalf("Expected unauthorized, got %v", err)
		}
	}

	if b.State() != metrics.CircuitClosed {
		t.Errorf("4xx answers must not trip the breaker, state %v", b.State())
	}
	if b.Counts().ConsecutiveFailures != 0 {
		t.Errorf("Expected no counted failures, got %d", b.Counts().ConsecutiveFailures)
	}
}

func TestBreaker_Disabled(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = false
	b := NewBreaker("bank-api", config.WithConsecutiveFailures(1))

	for i := 0; i < 3; i++ {
		err := b.Do(context.Background(), "op", func(ctx context.Context) error {
			return bankerr.New("op", bankerr.ErrServer, "")
		})
		if !errors.Is(err, bankerr.ErrServer) {
			t.Fatalf("Expected server error, got %v", err)
		}
	}

	if b.State() != metrics.CircuitClosed {
		t.Error("Disabled breaker should always report closed")
	}
}
