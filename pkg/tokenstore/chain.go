package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Chain layers stores from fastest to slowest. Reads fall through until a
// hit and warm the layers above it; writes and deletes reach every layer.
type Chain struct {
	layers []Store
	sf     singleflight.Group
}

// NewChain creates a chain over layers, ordered fastest first.
func NewChain(layers ...Store) (*Chain, error) {
	if len(layers) == 0 {
		return nil, errors.New("tokenstore: chain needs at least one layer")
	}
	return &Chain{layers: layers}, nil
}

// Cached puts an in-memory layer in front of persistent.
func Cached(persistent Store) Store {
	c, _ := NewChain(NewMemoryStore(), persistent)
	return c
}

// Get returns the value from the first layer that holds it. Concurrent reads
// of the same key share one traversal.
func (c *Chain) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		return c.getWithFallback(ctx, key)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Chain) getWithFallback(ctx context.Context, key string) (string, error) {
	var lastErr error
	for i, layer := range c.layers {
		value, err := layer.Get(ctx, key)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		for j := i - 1; j >= 0; j-- {
			_ = c.layers[j].Set(ctx, key, value)
		}
		return value, nil
	}

	// A failing layer outranks a plain miss so callers can tell an
	// unreachable store from an empty one.
	if lastErr != nil && !errors.Is(lastErr, ErrNotFound) {
		return "", lastErr
	}
	return "", ErrNotFound
}

// Set writes value to every layer, slowest first, so a failed persistent
// write never leaves a value only in memory.
func (c *Chain) Set(ctx context.Context, key, value string) error {
	for i := len(c.layers) - 1; i >= 0; i-- {
		if err := c.layers[i].Set(ctx, key, value); err != nil {
			return fmt.Errorf("tokenstore: set %s: %w", c.layers[i].Name(), err)
		}
	}
	return nil
}

// Delete removes key from every layer. Every layer is attempted; the first
// error other than a miss is returned.
func (c *Chain) Delete(ctx context.Context, key string) error {
	var firstErr error
	for _, layer := range c.layers {
		if err := layer.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) && firstErr == nil {
			firstErr = fmt.Errorf("tokenstore: delete %s: %w", layer.Name(), err)
		}
	}
	return firstErr
}

// Name reports the slowest layer, the one that persists values.
func (c *Chain) Name() string {
	return c.layers[len(c.layers)-1].Name()
}

// Close closes every layer and returns the first error.
func (c *Chain) Close() error {
	var firstErr error
	for _, layer := range c.layers {
		if err := layer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
