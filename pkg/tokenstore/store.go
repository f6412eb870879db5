// Package tokenstore persists the session token between process runs.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TokenKey is the well-known key the session token is stored under.
const TokenKey = "userToken"

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("tokenstore: key not found")

// Store is a small string key-value store. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Name() string
	Close() error
}

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSecure = "secure"
	BackendRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend string

	// Path is the file used by the file and secure backends.
	Path string

	// Passphrase derives the encryption key of the secure backend.
	Passphrase string

	Redis RedisConfig
}

// DefaultConfig returns an in-memory store configuration.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Redis:   DefaultRedisConfig(),
	}
}

// New builds the configured backend. Persistent backends are fronted by
// an in-memory layer.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	}

	var (
		persistent Store
		err        error
	)
	switch cfg.Backend {
	case BackendFile:
		persistent, err = NewFileStore(cfg.Path)
	case BackendSecure:
		persistent, err = NewSecureStore(SecureConfig{Path: cfg.Path, Passphrase: cfg.Passphrase})
	case BackendRedis:
		persistent, err = NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("tokenstore: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return Cached(persistent), nil
}

// GetToken reads the session token. A missing token is reported as "" with no error.
func GetToken(ctx context.Context, s Store) (string, error) {
	token, err := s.Get(ctx, TokenKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return token, err
}

// SetToken persists the session token.
func SetToken(ctx context.Context, s Store, token string) error {
	return s.Set(ctx, TokenKey, token)
}

// DeleteToken removes the session token. Deleting a missing token is not an error.
func DeleteToken(ctx context.Context, s Store) error {
	err := s.Delete(ctx, TokenKey)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// opTimeout bounds token store calls made without a caller deadline.
const opTimeout = 3 * time.Second

// WithTimeout returns ctx bounded by the default store timeout when ctx has no deadline.
func WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, opTimeout)
}
