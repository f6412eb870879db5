package memory

import (
	"sync"
	"time"

	"bank-client/pkg/metrics"
)

// MemoryCollector implements metrics.Collector in memory.
// Used by tests and by the status server's JSON view.
type MemoryCollector struct {
	mu sync.RWMutex

	endpoints map[string]*EndpointMetrics
	circuits  map[string]metrics.CircuitState
	opens     map[string]int64
	queues    map[string]*QueueMetrics
	stale     map[string]int64
}

// EndpointMetrics holds metrics for a single backend endpoint.
type EndpointMetrics struct {
	Requests     int64
	ByStatus     map[int]int64
	Errors       int64
	ErrorsByType map[string]int64
	Latencies    []time.Duration
}

// QueueMetrics holds metrics for a notification delivery queue.
type QueueMetrics struct {
	Depth     int
	Dropped   int64
	Delivered int64
	Failed    int64
}

// NewMemoryCollector creates a new in-memory metrics collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{
		endpoints: make(map[string]*EndpointMetrics),
		circuits:  make(map[string]metrics.CircuitState),
		opens:     make(map[string]int64),
		queues:    make(map[string]*QueueMetrics),
		stale:     make(map[string]int64),
	}
}

// endpoint returns the EndpointMetrics for name. Caller holds mu.
func (mc *MemoryCollector) endpoint(name string) *EndpointMetrics {
	em, ok := mc.endpoints[name]
	if !ok {
		em = &EndpointMetrics{
			ByStatus:     make(map[int]int64),
			ErrorsByType: make(map[string]int64),
		}
		mc.endpoints[name] = em
	}
	return em
}

// queue returns the QueueMetrics for name. Caller holds mu.
func (mc *MemoryCollector) queue(name string) *QueueMetrics {
	qm, ok := mc.queues[name]
	if !ok {
		qm = &QueueMetrics{}
		mc.queues[name] = qm
	}
	return qm
}

// RecordRequest records a completed backend call.
func (mc *MemoryCollector) RecordRequest(endpoint string, status int, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	em := mc.endpoint(endpoint)
	em.Requests++
	em.ByStatus[status]++
	em.Latencies = append(em.Latencies, duration)
}

// RecordRequestError records a failed backend call by error type.
func (mc *MemoryCollector) RecordRequestError(endpoint string, errorType string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	em := mc.endpoint(endpoint)
	em.Errors++
	em.ErrorsByType[errorType]++
}

// RecordCircuitState records the current circuit breaker state.
func (mc *MemoryCollector) RecordCircuitState(name string, state metrics.CircuitState) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	old := mc.circuits[name]
	mc.circuits[name] = state
	if old != metrics.CircuitOpen && state == metrics.CircuitOpen {
		mc.opens[name]++
	}
}

// RecordQueueDepth records the current dispatcher queue depth.
func (mc *MemoryCollector) RecordQueueDepth(queue string, depth int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.queue(queue).Depth = depth
}

// RecordNotificationDropped records a notification dropped due to backpressure.
func (mc *MemoryCollector) RecordNotificationDropped(queue string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.queue(queue).Dropped++
}

// RecordNotificationDelivered records a delivery attempt.
func (mc *MemoryCollector) RecordNotificationDelivered(queue string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	qm := mc.queue(queue)
	if success {
		qm.Delivered++
	} else {
		qm.Failed++
	}
}

// RecordStaleResponse records a response discarded by a state container.
func (mc *MemoryCollector) RecordStaleResponse(domain string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.stale[domain]++
}

// Snapshot is a copy of the collected metrics.
type Snapshot struct {
	Endpoints      map[string]EndpointMetrics `json:"endpoints"`
	Circuits       map[string]string          `json:"circuits"`
	CircuitOpens   map[string]int64           `json:"circuit_opens"`
	Queues         map[string]QueueMetrics    `json:"queues"`
	StaleResponses map[string]int64           `json:"stale_responses"`
}

// Snapshot returns a copy of the current metrics state.
func (mc *MemoryCollector) Snapshot() Snapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	s := Snapshot{
		Endpoints:      make(map[string]EndpointMetrics, len(mc.endpoints)),
		Circuits:       make(map[string]string, len(mc.circuits)),
		CircuitOpens:   make(map[string]int64, len(mc.opens)),
		Queues:         make(map[string]QueueMetrics, len(mc.queues)),
		StaleResponses: make(map[string]int64, len(mc.stale)),
	}

	for name, em := range mc.endpoints {
		cp := *em
		cp.ByStatus = make(map[int]int64, len(em.ByStatus))
		for k, v := range em.ByStatus {
			cp.ByStatus[k] = v
		}
		cp.ErrorsByType = make(map[string]int64, len(em.ErrorsByType))
		for k, v := range em.ErrorsByType {
			cp.ErrorsByType[k] = v
		}
		cp.Latencies = append([]time.Duration(nil), em.Latencies...)
		s.Endpoints[name] = cp
	}
	for name, st := range mc.circuits {
		s.Circuits[name] = st.String()
	}
	for name, n := range mc.opens {
		s.CircuitOpens[name] = n
	}
	for name, qm := range mc.queues {
		s.Queues[name] = *qm
	}
	for name, n := range mc.stale {
		s.StaleResponses[name] = n
	}

	return s
}

// Requests returns the number of recorded calls to endpoint.
func (mc *MemoryCollector) Requests(endpoint string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if em, ok := mc.endpoints[endpoint]; ok {
		return em.Requests
	}
	return 0
}

// StaleResponses returns the number of discarded responses for domain.
func (mc *MemoryCollector) StaleResponses(domain string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return mc.stale[domain]
}

// CircuitState returns the last recorded state for the named breaker.
func (mc *MemoryCollector) CircuitState(name string) metrics.CircuitState {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return mc.circuits[name]
}

// Reset clears all collected metrics.
func (mc *MemoryCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.endpoints = make(map[string]*EndpointMetrics)
	mc.circuits = make(map[string]metrics.CircuitState)
	mc.opens = make(map[string]int64)
	mc.queues = make(map[string]*QueueMetrics)
	mc.stale = make(map[string]int64)
}
