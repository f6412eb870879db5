package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bank-client/pkg/bankerr"
	"bank-client/pkg/logging"
	"bank-client/pkg/models"
	"bank-client/pkg/tokenstore"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// SessionController owns the session section and the persisted token.
type SessionController struct {
	store  *Store
	api    AuthAPI
	tokens tokenstore.Store
	logger *logging.Logger
	now    func() time.Time

	mu    sync.RWMutex
	hooks []func(ctx context.Context)
}

// NewSessionController returns a controller persisting tokens in tokens.
func NewSessionController(store *Store, api AuthAPI, tokens tokenstore.Store) *SessionController {
	return &SessionController{
		store:  store,
		api:    api,
		tokens: tokens,
		logger: logging.L().Component("state", string(DomainSession)),
		now:    time.Now,
	}
}

// OnAuthenticated registers fn to run after a session is established and its
// token persisted. Hooks run on the caller goroutine in registration order.
func (c *SessionController) OnAuthenticated(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Login authenticates with email and password.
func (c *SessionController) Login(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "login", func(ctx context.Context) (*models.Session, error) {
		return c.api.Login(ctx, email, password)
	})
}

// Register creates an account and authenticates with it.
func (c *SessionController) Register(ctx context.Context, name, email, password string) error {
	return c.authenticate(ctx, "register", func(ctx context.Context) (*models.Session, error) {
		return c.api.Register(ctx, name, email, password)
	})
}

func (c *SessionController) authenticate(ctx context.Context, op string, call func(context.Context) (*models.Session, error)) error {
	ticket := c.store.Begin(DomainSession, nil)

	session, err := call(ctx)
	if err != nil {
		c.logger.Info("Authentication failed", zap.String("op", op), zap.String("category", bankerr.Classify(err)))
		c.store.Complete(ticket, func(s *Snapshot) {
			if s.Session.Status != StatusAuthenticated {
				s.Session.Status = StatusUnauthenticated
				s.Session.User = nil
			}
			s.Session.Error = bankerr.UserMessage(err)
		})
		return err
	}

	if c.store.Generation() != ticket.Generation {
		c.store.Complete(ticket, func(*Snapshot) {})
		return bankerr.New("auth."+op, bankerr.ErrNotAuthenticated, "session changed while signing in")
	}

	storeCtx, cancel := tokenstore.WithTimeout(ctx)
	err = tokenstore.SetToken(storeCtx, c.tokens, session.Token)
	cancel()
	if err != nil {
		err = fmt.Errorf("persist session token: %w", err)
		c.logger.Error("Could not persist token", zap.String("store", c.tokens.Name()), zap.Error(err))
		c.store.Complete(ticket, func(s *Snapshot) {
			if s.Session.Status != StatusAuthenticated {
				s.Session.Status = StatusUnauthenticated
			}
			s.Session.Error = "Could not save your session. Please try again."
		})
		return err
	}

	user := session.User
	applied := c.store.NewSessionFrom(ticket, func(s *Snapshot) {
		s.Session = SessionState{Status: StatusAuthenticated, User: &user}
	})
	if !applied {
		c.dropToken(ctx, session.Token)
		return bankerr.New("auth."+op, bankerr.ErrNotAuthenticated, "session changed while signing in")
	}

	c.logger.Info("Session established",
		zap.String("op", op),
		zap.String("user_id", user.ID.String()),
		logging.Token(session.Token),
	)
	c.runHooks(ctx)
	return nil
}

// CheckStatus restores the session from the persisted token. With no token
// the session becomes unauthenticated. A JWT whose exp has passed is dropped
// without a network call. Any failure of the backend check logs out.
func (c *SessionController) CheckStatus(ctx context.Context) error {
	storeCtx, cancel := tokenstore.WithTimeout(ctx)
	token, err := tokenstore.GetToken(storeCtx, c.tokens)
	cancel()
	if err != nil {
		c.logger.Warn("Could not read token", zap.String("store", c.tokens.Name()), zap.Error(err))
		c.Logout(ctx)
		return fmt.Errorf("read session token: %w", err)
	}
	if token == "" {
		c.store.Update(func(s *Snapshot) {
			s.Session.Status = StatusUnauthenticated
		})
		return nil
	}
	if c.expired(token) {
		c.logger.Info("Stored token expired", logging.Token(token))
		c.Logout(ctx)
		return bankerr.New("auth.check_status", bankerr.ErrUnauthorized, "token expired")
	}

	prev := c.store.Snapshot()
	ticket := c.store.Begin(DomainSession, nil)

	session, err := c.api.CheckStatus(ctx)
	if err != nil {
		c.logger.Info("Session check failed", zap.String("category", bankerr.Classify(err)))
		if c.store.Complete(ticket, func(*Snapshot) {}) {
			c.Logout(ctx)
		}
		return err
	}

	if c.store.Generation() != ticket.Generation {
		c.store.Complete(ticket, func(*Snapshot) {})
		return nil
	}

	renewed := session.Token != "" && session.Token != token
	if renewed {
		storeCtx, cancel := tokenstore.WithTimeout(ctx)
		err := tokenstore.SetToken(storeCtx, c.tokens, session.Token)
		cancel()
		if err != nil {
			c.logger.Warn("Could not persist renewed token", zap.Error(err))
		}
	}

	user := session.User
	if prev.Session.Status == StatusAuthenticated && prev.Session.User != nil && prev.Session.User.ID == user.ID {
		if !c.store.Complete(ticket, func(s *Snapshot) {
			s.Session.User = &user
			s.Session.Error = ""
		}) && renewed && c.store.Generation() != ticket.Generation {
			c.dropToken(ctx, session.Token)
		}
		return nil
	}

	if !c.store.NewSessionFrom(ticket, func(s *Snapshot) {
		s.Session = SessionState{Status: StatusAuthenticated, User: &user}
	}) {
		if renewed {
			c.dropToken(ctx, session.Token)
		}
		return nil
	}
	c.logger.Info("Session restored", zap.String("user_id", user.ID.String()))
	c.runHooks(ctx)
	return nil
}

// Logout deletes the persisted token and clears every section in a single
// published transition.
func (c *SessionController) Logout(ctx context.Context) {
	storeCtx, cancel := tokenstore.WithTimeout(ctx)
	if err := tokenstore.DeleteToken(storeCtx, c.tokens); err != nil {
		c.logger.Warn("Could not delete token", zap.String("store", c.tokens.Name()), zap.Error(err))
	}
	cancel()

	c.store.NewSession(func(s *Snapshot) {
		s.Session = SessionState{Status: StatusUnauthenticated}
	})
	c.logger.Info("Logged out")
}

// dropToken deletes the persisted token if it still holds token. A session
// that ended while its token was being written must not be restored later.
func (c *SessionController) dropToken(ctx context.Context, token string) {
	storeCtx, cancel := tokenstore.WithTimeout(ctx)
	defer cancel()

	current, err := tokenstore.GetToken(storeCtx, c.tokens)
	if err != nil || current != token {
		return
	}
	if err := tokenstore.DeleteToken(storeCtx, c.tokens); err != nil {
		c.logger.Warn("Could not delete token of ended session", zap.String("store", c.tokens.Name()), zap.Error(err))
		return
	}
	c.logger.Info("Dropped token of ended session", logging.Token(token))
}

// Expire is Logout with the signature section hooks expect.
func (c *SessionController) Expire(ctx context.Context) {
	c.logger.Info("Session rejected by backend")
	c.Logout(ctx)
}

// Authenticated reports whether a session is active.
func (c *SessionController) Authenticated() bool {
	return c.store.Snapshot().Session.Status == StatusAuthenticated
}

// expired reports whether token is a JWT with an exp claim in the past.
// Opaque tokens are never considered expired here.
func (c *SessionController) expired(token string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.After(c.now())
}

func (c *SessionController) runHooks(ctx context.Context) {
	c.mu.RLock()
	hooks := append([]func(context.Context){}, c.hooks...)
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx)
	}
}
