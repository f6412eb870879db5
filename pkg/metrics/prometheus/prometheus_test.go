package prometheus

import (
	"testing"
	"time"

	"bank-client/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCollector_Register(t *testing.T) {
	pc := NewPrometheusCollector("bank_client_test")
	registry := prometheus.NewRegistry()

	if err := pc.Register(registry); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Registering twice must fail on the same registry
	if err := pc.Register(registry); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

func TestPrometheusCollector_Record(t *testing.T) {
	pc := NewPrometheusCollector("bank_client_test")

	pc.RecordRequest("GET /transferencias", 200, 10*time.Millisecond)
	pc.RecordRequest("GET /transferencias", 200, 12*time.Millisecond)
	pc.RecordRequestError("POST /transferencias", "insufficient_funds")
	pc.RecordCircuitState("bank-api", metrics.CircuitOpen)
	pc.RecordNotificationDropped("notifications")
	pc.RecordStaleResponse("account")

	if got := testutil.ToFloat64(pc.requests.WithLabelValues("GET /transferencias", "200")); got != 2 {
		t.Errorf("Expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(pc.requestErrors.WithLabelValues("POST /transferencias", "insufficient_funds")); got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}
	if got := testutil.ToFloat64(pc.circuitState.WithLabelValues("bank-api")); got != float64(metrics.CircuitOpen) {
		t.Errorf("Expected circuit state open, got %v", got)
	}
	if got := testutil.ToFloat64(pc.circuitOpens.WithLabelValues("bank-api")); got != 1 {
		t.Errorf("Expected 1 circuit open, got %v", got)
	}
	if got := testutil.ToFloat64(pc.dropped.WithLabelValues("notifications")); got != 1 {
		t.Errorf("Expected 1 dropped, got %v", got)
	}
	if got := testutil.ToFloat64(pc.staleResponses.WithLabelValues("account")); got != 1 {
		t.Errorf("Expected 1 stale response, got %v", got)
	}
}
