// Package dispatch delivers local notifications outside the process without
// blocking the code that raised them.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bank-client/pkg/logging"
	"bank-client/pkg/metrics"
	"bank-client/pkg/models"

	"go.uber.org/zap"
)

// Sink delivers one notification.
type Sink interface {
	Deliver(ctx context.Context, n models.Notification) error
	Name() string
}

// Config configures an AsyncDispatcher.
type Config struct {
	// QueueSize is the bounded queue size (default: 100)
	QueueSize int

	// Workers is the number of concurrent deliveries (default: 1)
	Workers int

	// MaxWaitTime is how long Send waits on a full queue.
	// 0 means the default of 10ms; negative drops immediately.
	MaxWaitTime time.Duration

	// DeliveryTimeout bounds a single delivery (default: 5s)
	DeliveryTimeout time.Duration

	// ReportInterval is how often queue depth is reported (default: 5s)
	ReportInterval time.Duration
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:       100,
		Workers:         1,
		MaxWaitTime:     10 * time.Millisecond,
		DeliveryTimeout: 5 * time.Second,
		ReportInterval:  5 * time.Second,
	}
}

// AsyncDispatcher hands notifications to a Sink from a bounded queue served
// by a worker pool. With one worker notifications are delivered in order.
type AsyncDispatcher struct {
	sink       Sink
	queue      chan models.Notification
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	config     Config
	metrics    metrics.Collector
	logger     *logging.Logger
	sinkName   string

	dropped int64
	total   int64
	failed  int64

	ticker *time.Ticker
	stop   chan struct{}
}

// New starts a dispatcher over sink. It must be closed with Close.
func New(sink Sink, config Config) *AsyncDispatcher {
	return NewWithMetrics(sink, config, metrics.NoOpCollector{})
}

// NewWithMetrics starts a dispatcher reporting to collector.
func NewWithMetrics(sink Sink, config Config, collector metrics.Collector) *AsyncDispatcher {
	defaults := DefaultConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.MaxWaitTime == 0 {
		config.MaxWaitTime = defaults.MaxWaitTime
	}
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = defaults.DeliveryTimeout
	}
	if config.ReportInterval <= 0 {
		config.ReportInterval = defaults.ReportInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &AsyncDispatcher{
		sink:       sink,
		queue:      make(chan models.Notification, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		metrics:    collector,
		logger:     logging.L().Component("dispatch", sink.Name()),
		sinkName:   sink.Name(),
		ticker:     time.NewTicker(config.ReportInterval),
		stop:       make(chan struct{}),
	}

	for i := 0; i < config.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	go d.reportMetrics()

	return d
}

// Dispatch enqueues n and reports whether it was accepted. It never blocks
// longer than MaxWaitTime.
func (d *AsyncDispatcher) Dispatch(n models.Notification) bool {
	err := d.Send(context.Background(), n)
	if err != nil {
		d.logger.Debug("Notification not queued", zap.String("id", n.ID.String()), zap.Error(err))
	}
	return err == nil
}

// Send enqueues n. On a full queue it waits up to MaxWaitTime before
// dropping n with ErrQueueFull.
func (d *AsyncDispatcher) Send(ctx context.Context, n models.Notification) error {
	select {
	case <-d.ctx.Done():
		return ErrClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case d.queue <- n:
		atomic.AddInt64(&d.total, 1)
		return nil
	default:
	}

	if d.config.MaxWaitTime < 0 {
		return d.drop()
	}

	timer := time.NewTimer(d.config.MaxWaitTime)
	defer timer.Stop()

	select {
	case d.queue <- n:
		atomic.AddInt64(&d.total, 1)
		return nil
	case <-timer.C:
		return d.drop()
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return ErrClosed
	}
}

func (d *AsyncDispatcher) drop() error {
	atomic.AddInt64(&d.dropped, 1)
	d.metrics.RecordNotificationDropped(d.sinkName)
	return ErrQueueFull
}

func (d *AsyncDispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		case <-d.ctx.Done():
			// Drain what is left before exiting.
			for {
				select {
				case n := <-d.queue:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *AsyncDispatcher) deliver(n models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.DeliveryTimeout)
	defer cancel()

	start := time.Now()
	err := d.sink.Deliver(ctx, n)
	duration := time.Since(start)

	d.metrics.RecordNotificationDelivered(d.sinkName, err == nil, duration)
	if err != nil {
		atomic.AddInt64(&d.failed, 1)
		d.logger.Warn("Notification delivery failed",
			zap.String("id", n.ID.String()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	}
}

// Flush waits until the queue is empty or timeout passes.
func (d *AsyncDispatcher) Flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if len(d.queue) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrFlushTimeout
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Close stops accepting notifications, delivers the queued ones and waits
// for the workers.
func (d *AsyncDispatcher) Close() error {
	d.closeOnce.Do(func() {
		close(d.stop)
		d.ticker.Stop()
		d.cancelFunc()
		d.wg.Wait()
	})
	return nil
}

func (d *AsyncDispatcher) reportMetrics() {
	for {
		select {
		case <-d.ticker.C:
			d.metrics.RecordQueueDepth(d.sinkName, len(d.queue))
		case <-d.stop:
			return
		}
	}
}

// Stats returns current dispatcher statistics.
func (d *AsyncDispatcher) Stats() Stats {
	return Stats{
		QueueDepth: len(d.queue),
		Dropped:    atomic.LoadInt64(&d.dropped),
		Total:      atomic.LoadInt64(&d.total),
		Failed:     atomic.LoadInt64(&d.failed),
	}
}
