package prometheus

import (
	"strconv"
	"time"

	"bank-client/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements metrics.Collector for Prometheus.
type PrometheusCollector struct {
	namespace string

	requests      *prometheus.CounterVec
	requestErrors *prometheus.CounterVec
	latency       *prometheus.HistogramVec

	circuitOpens *prometheus.CounterVec
	circuitState *prometheus.GaugeVec

	queueDepth      *prometheus.GaugeVec
	dropped         *prometheus.CounterVec
	delivered       *prometheus.CounterVec
	deliveryLatency *prometheus.HistogramVec

	staleResponses *prometheus.CounterVec
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		namespace: namespace,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of backend requests per endpoint and status code",
			},
			[]string{"endpoint", "status"},
		),
		requestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of failed backend requests per endpoint and error type",
			},
			[]string{"endpoint", "error_type"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Backend request latency",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"endpoint"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens",
			},
			[]string{"breaker"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"breaker"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "notification_queue_depth",
				Help:      "Current notification dispatcher queue depth",
			},
			[]string{"queue"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_dropped_total",
				Help:      "Total number of notifications dropped due to backpressure",
			},
			[]string{"queue"},
		),
		delivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_delivered_total",
				Help:      "Total number of notification delivery attempts",
			},
			[]string{"queue", "status"},
		),
		deliveryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_delivery_duration_seconds",
				Help:      "Notification delivery latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
			},
			[]string{"queue"},
		),
		staleResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_responses_total",
				Help:      "Total number of responses discarded by state containers",
			},
			[]string{"domain"},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (pc *PrometheusCollector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pc.requests,
		pc.requestErrors,
		pc.latency,
		pc.circuitOpens,
		pc.circuitState,
		pc.queueDepth,
		pc.dropped,
		pc.delivered,
		pc.deliveryLatency,
		pc.staleResponses,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

// RecordRequest records a completed backend call.
func (pc *PrometheusCollector) RecordRequest(endpoint string, status int, duration time.Duration) {
	pc.requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	pc.latency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRequestError records a failed backend call.
func (pc *PrometheusCollector) RecordRequestError(endpoint string, errorType string) {
	pc.requestErrors.WithLabelValues(endpoint, errorType).Inc()
}

// RecordCircuitState records the current circuit breaker state.
func (pc *PrometheusCollector) RecordCircuitState(name string, state metrics.CircuitState) {
	pc.circuitState.WithLabelValues(name).Set(float64(state))
	if state == metrics.CircuitOpen {
		pc.circuitOpens.WithLabelValues(name).Inc()
	}
}

// RecordQueueDepth records the current dispatcher queue depth.
func (pc *PrometheusCollector) RecordQueueDepth(queue string, depth int) {
	pc.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordNotificationDropped records a dropped notification.
func (pc *PrometheusCollector) RecordNotificationDropped(queue string) {
	pc.dropped.WithLabelValues(queue).Inc()
}

// RecordNotificationDelivered records a delivery attempt.
func (pc *PrometheusCollector) RecordNotificationDelivered(queue string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	pc.delivered.WithLabelValues(queue, status).Inc()
	pc.deliveryLatency.WithLabelValues(queue).Observe(duration.Seconds())
}

// RecordStaleResponse records a discarded response.
func (pc *PrometheusCollector) RecordStaleResponse(domain string) {
	pc.staleResponses.WithLabelValues(domain).Inc()
}
