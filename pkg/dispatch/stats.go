package dispatch

import "errors"

// Stats describes dispatcher activity.
type Stats struct {
	// QueueDepth is the number of notifications waiting for delivery
	QueueDepth int

	// Dropped is the number of notifications dropped because the queue was full
	Dropped int64

	// Total is the number of notifications accepted
	Total int64

	// Failed is the number of deliveries the sink rejected
	Failed int64
}

// Errors returned by Send.
var (
	// ErrQueueFull is returned when the queue stayed full for MaxWaitTime
	ErrQueueFull = errors.New("dispatch: queue full, notification dropped")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("dispatch: dispatcher is closed")

	// ErrFlushTimeout is returned when Flush times out waiting for the queue to drain
	ErrFlushTimeout = errors.New("dispatch: flush timeout exceeded")
)
