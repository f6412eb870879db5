package bankerr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error categories surfaced by the client.
// Every error returned by the action modules wraps exactly one of these.
var (
	// ErrNetwork is returned when the backend could not be reached
	ErrNetwork = errors.New("bank: network failure")

	// ErrTimeout is returned when a request exceeded the client timeout
	ErrTimeout = errors.New("bank: request timeout")

	// ErrUnauthorized is returned for 401/403 responses (bad credentials or expired session)
	ErrUnauthorized = errors.New("bank: unauthorized")

	// ErrValidation is returned for 400/422 responses and for requests rejected locally
	ErrValidation = errors.New("bank: validation failed")

	// ErrConflict is returned for 409 responses, e.g. duplicate registration
	ErrConflict = errors.New("bank: conflict")

	// ErrNotFound is returned for 404 responses outside the account-lookup endpoints
	ErrNotFound = errors.New("bank: not found")

	// ErrAccountNotFound is returned when a destination or searched account does not exist
	ErrAccountNotFound = errors.New("bank: account not found")

	// ErrInsufficientFunds is returned when a transfer exceeds the available balance
	ErrInsufficientFunds = errors.New("bank: insufficient funds")

	// ErrServer is returned for 5xx responses
	ErrServer = errors.New("bank: server error")

	// ErrMalformedResponse is returned when a response is not JSON or has an unexpected shape
	ErrMalformedResponse = errors.New("bank: malformed response")

	// ErrCircuitOpen is returned while the circuit breaker rejects calls
	ErrCircuitOpen = errors.New("bank: circuit breaker open")

	// ErrNotAuthenticated is returned when an operation needs a session and there is none
	ErrNotAuthenticated = errors.New("bank: not authenticated")
)

// APIError is a normalized failure of a single backend operation.
type APIError struct {
	// Op is the operation that failed, e.g. "auth.login"
	Op string

	// Status is the HTTP status code, 0 when the request never got a response
	Status int

	// Message is the backend supplied message, if any
	Message string

	// Kind is one of the package sentinels
	Kind error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Op != "" {
		b.WriteString(" (")
		b.WriteString(e.Op)
		if e.Status != 0 {
			fmt.Fprintf(&b, ", status %d", e.Status)
		}
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap lets errors.Is match the category sentinel.
func (e *APIError) Unwrap() error {
	return e.Kind
}

// New creates an APIError of the given kind.
func New(op string, kind error, message string) *APIError {
	return &APIError{Op: op, Kind: kind, Message: message}
}

// FromStatus maps an HTTP status and the backend message to an APIError.
// On statuses that report a rejected request (2xx envelope failures, 400,
// 404, 409 and 422) domain rejections are recognised from the message first.
// Authorization and server failures always keep their status category.
func FromStatus(op string, status int, message string) *APIError {
	e := &APIError{Op: op, Status: status, Message: message}

	if rejection(status) {
		switch {
		case mentions(message, "insufficient", "saldo insuficiente", "fondos insuficientes"):
			e.Kind = ErrInsufficientFunds
			return e
		case mentions(message, "cuenta no encontrada", "cuenta destino no existe", "account not found"):
			e.Kind = ErrAccountNotFound
			return e
		}
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = ErrUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = ErrValidation
	case status == http.StatusConflict:
		e.Kind = ErrConflict
	case status == http.StatusNotFound:
		e.Kind = ErrNotFound
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Kind = ErrTimeout
	case status >= 500:
		e.Kind = ErrServer
	default:
		e.Kind = ErrValidation
	}
	return e
}

func rejection(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return status >= 200 && status < 300
}

// Refine replaces the kind of an APIError that matches from with to.
// Used by endpoints where a generic 404 means the looked-up account does not exist.
func Refine(err error, from, to error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && errors.Is(apiErr.Kind, from) {
		refined := *apiErr
		refined.Kind = to
		return &refined
	}
	return err
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err means the session is not valid.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotAuthenticated)
}

// IsTransient reports whether err is caused by transport or server health
// rather than by the request itself. Only transient errors count against the breaker.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServer)
}

// Classify returns a short label of the error category for metrics.
func Classify(err error) string {
	if err == nil {
		return "none"
	}

	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_breaker_open"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrServer):
		return "server"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	default:
		return "other"
	}
}

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "The bank is not responding right now. Try again in a moment."
	case errors.Is(err, ErrTimeout):
		return "The request took too long. Check your connection and try again."
	case errors.Is(err, ErrNetwork):
		return "Could not connect to the bank. Check your internet connection."
	case errors.Is(err, ErrUnauthorized):
		if StatusOf(err) == http.StatusUnauthorized && opIs(err, "auth.login") {
			return "Invalid email or password."
		}
		return "Your session has expired. Please log in again."
	case errors.Is(err, ErrNotAuthenticated):
		return "Please log in first."
	case errors.Is(err, ErrConflict):
		return "An account with that email already exists."
	case errors.Is(err, ErrInsufficientFunds):
		return "Insufficient funds for this transfer."
	case errors.Is(err, ErrAccountNotFound):
		return "No account exists with that number."
	case errors.Is(err, ErrNotFound):
		return "The requested item was not found."
	case errors.Is(err, ErrValidation):
		if msg := messageOf(err); msg != "" {
			return msg
		}
		return "Some of the data entered is not valid."
	case errors.Is(err, ErrMalformedResponse):
		return "The bank sent an unexpected response."
	case errors.Is(err, ErrServer):
		return "The bank had a problem processing the request."
	default:
		return "Something went wrong. Please try again."
	}
}

func messageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

func opIs(err error, op string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Op == op
}

// mentions checks if s contains any of the given substrings (case-insensitive)
func mentions(s string, substrs ...string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, substr := range substrs {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}
