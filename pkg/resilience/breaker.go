package resilience

import (
	"context"
	"errors"
	"time"

	"bank-client/pkg/bankerr"
	"bank-client/pkg/logging"
	"bank-client/pkg/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Breaker wraps backend calls with a timeout and, when enabled, a circuit breaker.
// Only transient failures (network, timeout, 5xx) count against the breaker;
// a rejected login or an insufficient-funds answer means the backend is healthy.
type Breaker struct {
	name    string
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.Collector
	logger  *logging.Logger
}

// NewBreaker creates a breaker with a no-op metrics collector.
func NewBreaker(name string, config Config) *Breaker {
	return NewBreakerWithMetrics(name, config, metrics.NoOpCollector{})
}

// NewBreakerWithMetrics creates a breaker reporting state changes to collector.
func NewBreakerWithMetrics(name string, config Config, collector metrics.Collector) *Breaker {
	logger := logging.L().Component("resilience", name)

	b := &Breaker{
		name:    name,
		timeout: config.Timeout,
		metrics: collector,
		logger:  logger,
	}

	if !config.Enabled {
		logger.Debug("circuit breaker disabled", zap.Duration("timeout", config.Timeout))
		return b
	}

	threshold := config.CircuitBreakerConfig.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	logger.Debug("circuit breaker initialized",
		zap.Duration("timeout", config.Timeout),
		zap.Uint32("max_requests", config.CircuitBreakerConfig.MaxRequests),
		zap.Duration("circuit_interval", config.CircuitBreakerConfig.Interval),
		zap.Duration("circuit_open_timeout", config.CircuitBreakerConfig.OpenTimeout),
		zap.Uint32("consecutive_failures", threshold),
	)

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.CircuitBreakerConfig.MaxRequests,
		Interval:    config.CircuitBreakerConfig.Interval,
		Timeout:     config.CircuitBreakerConfig.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !bankerr.IsTransient(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			b.metrics.RecordCircuitState(name, toCircuitState(to))
		},
	}
	b.cb = gobreaker.NewCircuitBreaker(settings)

	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Do runs fn with the configured timeout and breaker protection.
// A call rejected by an open breaker returns bankerr.ErrCircuitOpen without running fn.
func (b *Breaker) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	if b.cb == nil {
		return b.classify(ctx, op, fn(ctx))
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.classify(ctx, op, fn(ctx))
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.logger.Warn("circuit breaker open - request rejected", zap.String("operation", op))
		return bankerr.New(op, bankerr.ErrCircuitOpen, "")
	}
	return err
}

// classify turns a bare context deadline into the client's timeout category.
func (b *Breaker) classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bankerr.ErrTimeout) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		b.logger.Warn("operation timeout",
			zap.String("operation", op),
			zap.Duration("timeout", b.timeout),
		)
		return bankerr.New(op, bankerr.ErrTimeout, "")
	}
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() metrics.CircuitState {
	if b.cb == nil {
		return metrics.CircuitClosed
	}
	return toCircuitState(b.cb.State())
}

// Counts returns the breaker's internal counters.
func (b *Breaker) Counts() Counts {
	if b.cb == nil {
		return Counts{}
	}
	c := b.cb.Counts()
	return Counts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}

func toCircuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}
