// Package fakebackend is an in-memory implementation of the banking REST API.
// It backs the package tests and the fakebank command.
package fakebackend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"bank-client/pkg/logging"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Route names, used by Calls, FailNext and SetDelay.
const (
	RouteLogin            = "login"
	RouteRegister         = "register"
	RouteCheckStatus      = "check-status"
	RouteAccount          = "account"
	RouteTransferCreate   = "transfer-create"
	RouteTransferList     = "transfer-list"
	RouteRecipientSearch  = "recipient-search"
	RouteRecipientAdd     = "recipient-add"
	RouteRecipientList    = "recipient-list"
	RouteRecipientUpdate  = "recipient-update"
	RouteRecipientDelete  = "recipient-delete"
	RouteCardList         = "card-list"
	RouteCardGet          = "card-get"
	RouteNotificationList = "notification-list"
	RouteNotificationRead = "notification-read"
)

// DefaultBankName is the bank every fake account belongs to.
const DefaultBankName = "Banco Riku"

// Options changes how the fake answers.
type Options struct {
	// BareResponses drops the {success, data} envelope from data endpoints.
	BareResponses bool

	// OmitRecipientRecord answers recipient creation with {success:true} only.
	OmitRecipientRecord bool

	// TokenTTL is the lifetime of issued tokens. Default: 1h
	TokenTTL time.Duration

	// Secret signs issued tokens. Default: a fixed test secret
	Secret []byte
}

type failure struct {
	status  int
	message string
}

// Server is the fake backend. It is safe for concurrent use.
type Server struct {
	router *mux.Router
	opts   Options
	logger *logging.Logger

	mu            sync.Mutex
	nextID        int
	users         map[string]*user
	accounts      map[int]*account
	movements     []movement
	recipients    []recipient
	cards         []card
	notifications []notification
	calls         map[string]int
	failures      map[string][]failure
	delays        map[string]time.Duration
	now           func() time.Time
}

// New creates a fake backend with no users.
func New(opts Options) *Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if len(opts.Secret) == 0 {
		opts.Secret = []byte("fakebackend-secret")
	}

	s := &Server{
		opts:     opts,
		logger:   logging.L().Component("fakebackend"),
		nextID:   1,
		users:    make(map[string]*user),
		accounts: make(map[int]*account),
		calls:    make(map[string]int),
		failures: make(map[string][]failure),
		delays:   make(map[string]time.Duration),
		now:      time.Now,
	}

	r := mux.NewRouter()
	r.Use(s.countCalls, s.injectFailures)

	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost).Name(RouteLogin)
	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost).Name(RouteRegister)

	authed := r.NewRoute().Subrouter()
	authed.Use(s.requireToken)
	authed.HandleFunc("/auth/check-status", s.handleCheckStatus).Methods(http.MethodGet).Name(RouteCheckStatus)
	authed.HandleFunc("/cuenta/info", s.handleAccount).Methods(http.MethodGet).Name(RouteAccount)
	authed.HandleFunc("/transferencias", s.handleTransferCreate).Methods(http.MethodPost).Name(RouteTransferCreate)
	authed.HandleFunc("/transferencias", s.handleTransferList).Methods(http.MethodGet).Name(RouteTransferList)
	authed.HandleFunc("/beneficiarios/search", s.handleRecipientSearch).Methods(http.MethodPost).Name(RouteRecipientSearch)
	authed.HandleFunc("/beneficiarios/add", s.handleRecipientAdd).Methods(http.MethodPost).Name(RouteRecipientAdd)
	authed.HandleFunc("/beneficiarios/list", s.handleRecipientList).Methods(http.MethodGet).Name(RouteRecipientList)
	authed.HandleFunc("/beneficiarios/update/{id}", s.handleRecipientUpdate).Methods(http.MethodPut).Name(RouteRecipientUpdate)
	authed.HandleFunc("/beneficiarios/delete/{id}", s.handleRecipientDelete).Methods(http.MethodDelete).Name(RouteRecipientDelete)
	authed.HandleFunc("/tarjetas", s.handleCardList).Methods(http.MethodGet).Name(RouteCardList)
	authed.HandleFunc("/tarjetas/{id}", s.handleCardGet).Methods(http.MethodGet).Name(RouteCardGet)
	authed.HandleFunc("/notificaciones", s.handleNotificationList).Methods(http.MethodGet).Name(RouteNotificationList)
	authed.HandleFunc("/notificaciones/{id}/leer", s.handleNotificationRead).Methods(http.MethodPatch).Name(RouteNotificationRead)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Ruta no encontrada")
	})
	s.router = r
	return s
}

// ServeHTTP serves the API at the root. Mount it with http.StripPrefix to
// serve it under /api.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Calls returns how many requests reached route, including injected failures.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// FailNext makes the next request to route answer status with message.
// Calls queue up: FailNext twice fails the next two requests.
func (s *Server) FailNext(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{status: status, message: message})
}

// SetDelay holds every request to route for d before answering.
func (s *Server) SetDelay(route string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[route] = d
}

// SetClock replaces the clock used for timestamps and token expiry.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return ""
}

func (s *Server) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := routeName(r)
		s.mu.Lock()
		s.calls[name]++
		delay := s.delays[name]
		s.mu.Unlock()

		s.logger.Debug("request", zap.String("route", name), zap.String("method", r.Method), zap.String("path", r.URL.Path))

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := routeName(r)
		s.mu.Lock()
		queue := s.failures[name]
		var f *failure
		if len(queue) > 0 {
			f = &queue[0]
			s.failures[name] = queue[1:]
		}
		s.mu.Unlock()

		if f != nil {
			writeError(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Token no proporcionado")
			return
		}

		userID, err := s.parseToken(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Token inválido o expirado")
			return
		}

		s.mu.Lock()
		u := s.userByID(userID)
		s.mu.Unlock()
		if u == nil {
			writeError(w, http.StatusUnauthorized, "Usuario no existe")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

func currentUserID(r *http.Request) int {
	id, _ := r.Context().Value(ctxKey{}).(int)
	return id
}

// IssueToken signs a token for the user registered under email, valid for ttl.
// A negative ttl yields an already expired token.
func (s *Server) IssueToken(email string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	u, ok := s.users[strings.ToLower(email)]
	now := s.now()
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("fakebackend: no user %s", email)
	}
	return s.signToken(u.ID, now, ttl)
}

func (s *Server) signToken(userID int, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.Secret)
}

func (s *Server) parseToken(raw string) (int, error) {
	s.mu.Lock()
	now := s.now
	s.mu.Unlock()

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.opts.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(now))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(claims.Subject)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

// respond writes data wrapped in the envelope unless BareResponses is set.
func (s *Server) respond(w http.ResponseWriter, status int, data interface{}) {
	if s.opts.BareResponses {
		writeJSON(w, status, data)
		return
	}
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
