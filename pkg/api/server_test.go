package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	memorycollector "bank-client/pkg/metrics/memory"
	promcollector "bank-client/pkg/metrics/prometheus"
	"bank-client/pkg/models"
	"bank-client/pkg/state"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeRefresher struct {
	calls int
	err   error
	scope *state.Scope
}

func (f *fakeRefresher) RefreshAll(ctx context.Context, scope *state.Scope) error {
	f.calls++
	f.scope = scope
	return f.err
}

func setupTestServer(t *testing.T, opts ...Option) (*Server, *state.Store, *memorycollector.MemoryCollector) {
	t.Helper()
	store := state.NewStore()
	store.Update(func(s *state.Snapshot) {
		s.Session = state.SessionState{Status: state.StatusAuthenticated, User: &models.User{ID: "7", Name: "Ana"}}
		s.Account.Account = &models.Account{Number: "6185283545501725", Balance: 10000}
		s.Account.PendingDebit = 500
		s.Cards.Cards = []models.Card{{ID: "1", Number: "4111111111111234", CVV: "321"}}
		s.Notifications.Notifications = []models.Notification{{ID: "1"}, {ID: "2", Read: true}}
	})

	metrics := memorycollector.NewMemoryCollector()
	return NewServer(store, metrics, DefaultServerConfig(), opts...), store, metrics
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := serve(server, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(w.Body).Decode(&response)
	if response["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %v", response["status"])
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := serve(server, http.MethodPost, "/health")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestServer_Status(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := serve(server, http.MethodGet, "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response statusResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if response.Session != state.StatusAuthenticated || response.UserID != "7" {
		t.Errorf("Unexpected session: %+v", response)
	}
	if response.Available == nil || *response.Available != 9500 {
		t.Errorf("Expected available 9500, got %v", response.Available)
	}
	if response.UnreadCount != 1 {
		t.Errorf("Expected 1 unread, got %d", response.UnreadCount)
	}
	if response.Sections["cards"].Count != 1 {
		t.Errorf("Expected 1 card, got %+v", response.Sections["cards"])
	}
}

func TestServer_StateIsRedacted(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := serve(server, http.MethodGet, "/state")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "4111111111111234") || strings.Contains(body, "321") {
		t.Errorf("Expected card data redacted, got %s", body)
	}
	if !strings.Contains(body, "**** **** **** 1234") {
		t.Errorf("Expected masked card number, got %s", body)
	}
}

func TestServer_StateDomain(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := serve(server, http.MethodGet, "/state/account")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var account state.AccountState
	if err := json.NewDecoder(w.Body).Decode(&account); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if account.Account == nil || account.Account.Balance != 10000 {
		t.Errorf("Unexpected account section: %+v", account)
	}

	if w := serve(server, http.MethodGet, "/state/loans"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown section, got %d", w.Code)
	}
}

func TestServer_Refresh(t *testing.T) {
	refresher := &fakeRefresher{}
	server, _, _ := setupTestServer(t, WithRefresher(refresher))

	w := serve(server, http.MethodPost, "/refresh")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if refresher.calls != 1 {
		t.Errorf("Expected 1 refresh, got %d", refresher.calls)
	}
	if !refresher.scope.Closed() {
		t.Error("Expected refresh scope closed after the request")
	}

	refresher.err = errors.New("backend down")
	if w := serve(server, http.MethodPost, "/refresh"); w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", w.Code)
	}
}

func TestServer_RefreshUnavailable(t *testing.T) {
	server, _, _ := setupTestServer(t)

	if w := serve(server, http.MethodPost, "/refresh"); w.Code != http.StatusNotImplemented {
		t.Errorf("Expected 501, got %d", w.Code)
	}
}

func TestServer_MetricsJSON(t *testing.T) {
	server, _, metrics := setupTestServer(t)
	metrics.RecordStaleResponse("account")

	w := serve(server, http.MethodGet, "/metrics/json")
	var snap memorycollector.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if snap.StaleResponses["account"] != 1 {
		t.Errorf("Expected 1 stale response, got %v", snap.StaleResponses)
	}
}

func TestServer_PrometheusMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := promcollector.NewPrometheusCollector("bank")
	if err := collector.Register(registry); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	collector.RecordStaleResponse("account")

	server := NewServer(state.NewStore(), collector, DefaultServerConfig(), WithGatherer(registry))

	w := serve(server, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "bank_") {
		t.Errorf("Expected bank metrics, got %s", w.Body.String())
	}
}

func TestServer_MetricsFallback(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := serve(server, http.MethodGet, "/metrics")
	if !strings.Contains(w.Body.String(), "does not support Prometheus") {
		t.Errorf("Expected fallback text, got %s", w.Body.String())
	}
}
