package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"bank-client/pkg/tokenstore"
)

// Store is an in-memory tokenstore.Store with optional hooks and call counters.
type Store struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key, value string) error
	DeleteFunc func(ctx context.Context, key string) error

	// OnSet runs after a successful Set, with the stored value.
	OnSet func(key, value string)

	mu     sync.Mutex
	values map[string]string

	getCalls    int64
	setCalls    int64
	deleteCalls int64
	closeCalls  int64
}

// New returns an empty mock store with no hooks.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

func (m *Store) Get(ctx context.Context, key string) (string, error) {
	atomic.AddInt64(&m.getCalls, 1)
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", tokenstore.ErrNotFound
	}
	return v, nil
}

func (m *Store) Set(ctx context.Context, key, value string) error {
	atomic.AddInt64(&m.setCalls, 1)
	if m.SetFunc != nil {
		if err := m.SetFunc(ctx, key, value); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	if m.OnSet != nil {
		m.OnSet(key, value)
	}
	return nil
}

func (m *Store) Delete(ctx context.Context, key string) error {
	atomic.AddInt64(&m.deleteCalls, 1)
	if m.DeleteFunc != nil {
		if err := m.DeleteFunc(ctx, key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

func (m *Store) Name() string { return "mock" }

func (m *Store) Close() error {
	atomic.AddInt64(&m.closeCalls, 1)
	return nil
}

// Value returns the raw stored value without counting a call.
func (m *Store) Value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Store) GetCalls() int64    { return atomic.LoadInt64(&m.getCalls) }
func (m *Store) SetCalls() int64    { return atomic.LoadInt64(&m.setCalls) }
func (m *Store) DeleteCalls() int64 { return atomic.LoadInt64(&m.deleteCalls) }
func (m *Store) CloseCalls() int64  { return atomic.LoadInt64(&m.closeCalls) }

// Reset clears values and counters.
func (m *Store) Reset() {
	m.mu.Lock()
	m.values = make(map[string]string)
	m.mu.Unlock()
	atomic.StoreInt64(&m.getCalls, 0)
	atomic.StoreInt64(&m.setCalls, 0)
	atomic.StoreInt64(&m.deleteCalls, 0)
	atomic.StoreInt64(&m.closeCalls, 0)
}
