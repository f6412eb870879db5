package actions

import (
	"context"
	"net/http"
	"strings"

	"bank-client/pkg/bankerr"
	"bank-client/pkg/logging"
	"bank-client/pkg/models"

	"go.uber.org/zap"
)

// Auth wraps the /auth endpoints.
type Auth struct {
	client Doer
	logger *logging.Logger
}

// NewAuth returns the auth module over client.
func NewAuth(client Doer) *Auth {
	return &Auth{client: client, logger: logging.L().Component("actions", "auth")}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Nombre   string `json:"nombre"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session. It does not persist anything.
func (a *Auth) Login(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, invalid(OpLogin, "Email and password are required.")
	}

	var wire models.AuthResponseWire
	if _, err := a.client.Do(ctx, OpLogin, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &wire); err != nil {
		return nil, err
	}
	session, err := wire.ToModel()
	if err != nil {
		return nil, malformed(OpLogin, err)
	}

	a.logger.Info("login succeeded", zap.String("user_id", session.User.ID.String()), logging.Token(session.Token))
	return session, nil
}

// Register creates a user and returns its session. The email is lowercased
// before sending.
func (a *Auth) Register(ctx context.Context, name, email, password string) (*models.Session, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case name == "":
		return nil, invalid(OpRegister, "Name is required.")
	case email == "" || !strings.Contains(email, "@"):
		return nil, invalid(OpRegister, "A valid email is required.")
	case password == "":
		return nil, invalid(OpRegister, "Password is required.")
	}

	var wire models.AuthResponseWire
	req := registerRequest{Nombre: name, Email: email, Password: password}
	if _, err := a.client.Do(ctx, OpRegister, http.MethodPost, "/auth/register", req, &wire); err != nil {
		return nil, err
	}
	session, err := wire.ToModel()
	if err != nil {
		return nil, malformed(OpRegister, err)
	}

	a.logger.Info("registration succeeded", zap.String("user_id", session.User.ID.String()))
	return session, nil
}

// CheckStatus validates the stored token with the backend and returns the
// session it belongs to, possibly with a renewed token.
func (a *Auth) CheckStatus(ctx context.Context) (*models.Session, error) {
	var wire models.AuthResponseWire
	if _, err := a.client.Do(ctx, OpCheckStatus, http.MethodGet, "/auth/check-status", nil, &wire); err != nil {
		return nil, err
	}
	session, err := wire.ToModel()
	if err != nil {
		return nil, malformed(OpCheckStatus, err)
	}
	return session, nil
}

// IsInvalidCredentials reports whether err is a rejected login.
func IsInvalidCredentials(err error) bool {
	return bankerr.IsUnauthorized(err) && bankerr.StatusOf(err) == http.StatusUnauthorized
}
