package app

import (
	"context"
	"sync"
	"time"
)

// Poller runs a function at a fixed interval until stopped. Runs never
// overlap; a tick that arrives while a run is in progress is skipped.
type Poller struct {
	interval time.Duration
	fn       func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller returns a stopped poller. A non-positive interval disables it.
func NewPoller(interval time.Duration, fn func(ctx context.Context)) *Poller {
	return &Poller{interval: interval, fn: fn}
}

// Start begins polling. Calling Start on a running poller does nothing.
func (p *Poller) Start() {
	if p.interval <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop halts polling and waits for a run in progress to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the poller is started.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fn(ctx)
		}
	}
}
