// Package api serves a local read-only view of the client state for
// monitoring: health, session status, the redacted state and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"bank-client/pkg/logging"
	"bank-client/pkg/metrics"
	"bank-client/pkg/metrics/memory"
	"bank-client/pkg/state"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StateSource provides the snapshot served by /state and /status.
type StateSource interface {
	Snapshot() state.Snapshot
}

// Refresher triggers a full refresh of the state.
type Refresher interface {
	RefreshAll(ctx context.Context, scope *state.Scope) error
}

// Server provides HTTP endpoints for state inspection and monitoring.
type Server struct {
	state     StateSource
	metrics   metrics.Collector
	gatherer  prometheus.Gatherer
	refresher Refresher
	server    *http.Server
	router    *mux.Router
	config    ServerConfig
	logger    *logging.Logger
	started   time.Time
}

// ServerConfig holds configuration for the status server.
type ServerConfig struct {
	// Address to listen on (e.g., "127.0.0.1:8088")
	Address string

	// ReadTimeout for HTTP requests
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses
	WriteTimeout time.Duration

	// RefreshTimeout bounds a refresh triggered through POST /refresh
	RefreshTimeout time.Duration
}

// DefaultServerConfig returns a default configuration bound to loopback.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:        "127.0.0.1:8088",
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		RefreshTimeout: 15 * time.Second,
	}
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer serves /metrics from a Prometheus registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithRefresher enables POST /refresh.
func WithRefresher(r Refresher) Option {
	return func(s *Server) {
		s.refresher = r
	}
}

// NewServer creates a status server over src.
func NewServer(src StateSource, collector metrics.Collector, config ServerConfig, opts ...Option) *Server {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	s := &Server{
		state:   src,
		metrics: collector,
		config:  config,
		logger:  logging.L().Component("api"),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/state/{domain}", s.handleStateDomain).Methods(http.MethodGet)
	r.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/metrics/json", s.handleMetricsJSON).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	} else {
		r.HandleFunc("/metrics", s.handleMetricsUnavailable).Methods(http.MethodGet)
	}
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
	s.router = r

	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in a goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("api: listen on %s: %w", s.config.Address, err)
	}
	s.logger.Info("Status server listening", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

type sectionStatus struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Count   int    `json:"count"`
}

type statusResponse struct {
	Status       string                   `json:"status"`
	Session      state.SessionStatus      `json:"session"`
	UserID       string                   `json:"user_id,omitempty"`
	Generation   uint64                   `json:"generation"`
	Version      uint64                   `json:"version"`
	Uptime       string                   `json:"uptime"`
	Balance      *float64                 `json:"balance,omitempty"`
	Available    *float64                 `json:"available,omitempty"`
	PendingDebit float64                  `json:"pending_debit"`
	UnreadCount  int                      `json:"unread_count"`
	Sections     map[string]sectionStatus `json:"sections"`
	Timestamp    int64                    `json:"timestamp"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()

	resp := statusResponse{
		Status:       "running",
		Session:      snap.Session.Status,
		Generation:   snap.Generation,
		Version:      snap.Version,
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		PendingDebit: snap.Account.PendingDebit,
		UnreadCount:  snap.Notifications.UnreadCount(),
		Timestamp:    time.Now().Unix(),
		Sections: map[string]sectionStatus{
			string(state.DomainSession):       {Loading: snap.Session.Loading, Error: snap.Session.Error},
			string(state.DomainAccount):       {Loading: snap.Account.Loading, Error: snap.Account.Error, Count: boolCount(snap.Account.Account != nil)},
			string(state.DomainTransfers):     {Loading: snap.Transfers.Loading, Error: snap.Transfers.Error, Count: len(snap.Transfers.Transfers)},
			string(state.DomainRecipients):    {Loading: snap.Recipients.Loading, Error: snap.Recipients.Error, Count: len(snap.Recipients.Recipients)},
			string(state.DomainCards):         {Loading: snap.Cards.Loading, Error: snap.Cards.Error, Count: len(snap.Cards.Cards)},
			string(state.DomainNotifications): {Loading: snap.Notifications.Loading, Error: snap.Notifications.Error, Count: len(snap.Notifications.Notifications)},
		},
	}
	if snap.Session.User != nil {
		resp.UserID = snap.Session.User.ID.String()
	}
	if snap.Account.Account != nil {
		balance := snap.Account.Account.Balance
		available := snap.Account.Available()
		resp.Balance = &balance
		resp.Available = &available
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Snapshot().Redacted())
}

func (s *Server) handleStateDomain(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot().Redacted()

	var section interface{}
	switch state.Domain(mux.Vars(r)["domain"]) {
	case state.DomainSession:
		section = snap.Session
	case state.DomainAccount:
		section = snap.Account
	case state.DomainTransfers:
		section = snap.Transfers
	case state.DomainRecipients:
		section = snap.Recipients
	case state.DomainCards:
		section = snap.Cards
	case state.DomainNotifications:
		section = snap.Notifications
	default:
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": "unknown section",
		})
		return
	}
	writeJSON(w, http.StatusOK, section)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]interface{}{
			"error": "refresh not available",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RefreshTimeout)
	defer cancel()

	scope := state.NewScope("api.refresh")
	defer scope.Close()

	if err := s.refresher.RefreshAll(ctx, scope); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"refreshed": true,
		"version":   s.state.Snapshot().Version,
	})
}

func (s *Server) handleMetricsUnavailable(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "# Metrics collector does not support Prometheus format\n")
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	if mc, ok := s.metrics.(interface{ Snapshot() memory.Snapshot }); ok {
		writeJSON(w, http.StatusOK, mc.Snapshot())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"error": "Metrics collector does not support JSON snapshot",
	})
}

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
