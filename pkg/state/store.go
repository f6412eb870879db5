// Package state holds the client-side state containers. One Store keeps a
// section per domain; controllers are the only writers of their sections.
package state

import (
	"context"
	"sync"
	"sync/atomic"

	"bank-client/pkg/logging"
	"bank-client/pkg/metrics"

	"go.uber.org/zap"
)

// Scope is the lifetime of whatever asked for a fetch, typically a screen.
// Responses arriving after the scope is closed are discarded. A nil *Scope
// never closes.
type Scope struct {
	name   string
	closed atomic.Bool
}

// NewScope returns an open scope.
func NewScope(name string) *Scope {
	return &Scope{name: name}
}

// Close marks the scope closed. It is safe to call more than once.
func (s *Scope) Close() {
	if s != nil {
		s.closed.Store(true)
	}
}

// Closed reports whether Close was called.
func (s *Scope) Closed() bool {
	return s != nil && s.closed.Load()
}

// Name returns the scope name, or "" for a nil scope.
func (s *Scope) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Ticket identifies one in-flight request.
type Ticket struct {
	Domain     Domain
	Seq        uint64
	Generation uint64
	Scope      *Scope
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMetrics sets the collector stale responses are counted on.
func WithMetrics(collector metrics.Collector) Option {
	return func(s *Store) {
		s.metrics = collector
	}
}

type subscriber struct {
	ch chan Snapshot
}

// Store is the root state container.
type Store struct {
	mu       sync.Mutex
	snap     Snapshot
	issued   map[Domain]uint64
	applied  map[Domain]uint64
	inflight map[Domain]int
	subs     map[int]*subscriber
	nextSub  int

	logger  *logging.Logger
	metrics metrics.Collector
}

// NewStore returns a store with the session in the checking status.
func NewStore(opts ...Option) *Store {
	s := &Store{
		issued:   make(map[Domain]uint64),
		applied:  make(map[Domain]uint64),
		inflight: make(map[Domain]int),
		subs:     make(map[int]*subscriber),
		logger:   logging.L().Component("state"),
		metrics:  metrics.NoOpCollector{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Session.Status = StatusChecking
	return s
}

// Snapshot returns the current state. Sections are never mutated in place,
// so the returned value can be read without further locking.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Generation returns the current session generation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Generation
}

type generationKey struct{}

// WithGeneration tags ctx with the session generation a request was issued in.
func WithGeneration(ctx context.Context, gen uint64) context.Context {
	return context.WithValue(ctx, generationKey{}, gen)
}

// GenerationFrom returns the generation ctx was tagged with by WithGeneration.
func GenerationFrom(ctx context.Context) (uint64, bool) {
	gen, ok := ctx.Value(generationKey{}).(uint64)
	return gen, ok
}

// Subscribe returns a channel receiving every published snapshot, starting
// with the current one. A slow reader only sees the newest snapshot.
// The returned function unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	sub := &subscriber{ch: make(chan Snapshot, 1)}
	sub.ch <- s.snap
	s.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(sub.ch)
		})
	}
}

// Update applies fn and publishes the result.
func (s *Store) Update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
	s.publishLocked()
}

// UpdateIf applies fn and publishes only when fn returns nil.
// fn must not modify the snapshot before deciding to fail.
func (s *Store) UpdateIf(fn func(*Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snap
	if err := fn(&next); err != nil {
		return err
	}
	s.snap = next
	s.publishLocked()
	return nil
}

// UpdateInGeneration applies fn only while the session generation is gen.
func (s *Store) UpdateInGeneration(gen uint64, fn func(*Snapshot)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Generation != gen {
		return false
	}
	fn(&s.snap)
	s.publishLocked()
	return true
}

// Begin issues a ticket for a request of domain and marks the section loading.
func (s *Store) Begin(domain Domain, scope *Scope) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issued[domain]++
	s.inflight[domain]++
	s.snap.setLoading(domain, true)
	s.publishLocked()

	return Ticket{
		Domain:     domain,
		Seq:        s.issued[domain],
		Generation: s.snap.Generation,
		Scope:      scope,
	}
}

// Complete finishes the request of t. fn runs only if the session generation
// is unchanged, the scope is still open, and no newer request of the same
// domain has been applied. It reports whether fn ran.
func (s *Store) Complete(t Ticket, fn func(*Snapshot)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Generation != s.snap.Generation {
		s.discardLocked(t, "session changed")
		return false
	}

	s.inflight[t.Domain]--
	if s.inflight[t.Domain] <= 0 {
		s.inflight[t.Domain] = 0
		s.snap.setLoading(t.Domain, false)
	}

	ok := true
	switch {
	case t.Scope.Closed():
		s.discardLocked(t, "scope closed")
		ok = false
	case t.Seq <= s.applied[t.Domain]:
		s.discardLocked(t, "newer response applied")
		ok = false
	default:
		s.applied[t.Domain] = t.Seq
		fn(&s.snap)
	}

	s.publishLocked()
	return ok
}

// NewSession bumps the generation and clears every domain section, then
// applies fn, all in one published transition. Outstanding tickets become stale.
func (s *Store) NewSession(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	fn(&s.snap)
	s.publishLocked()
}

// NewSessionFrom is NewSession gated on t, for login responses.
func (s *Store) NewSessionFrom(t Ticket, fn func(*Snapshot)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Generation != s.snap.Generation {
		s.discardLocked(t, "session changed")
		return false
	}
	s.resetLocked()
	s.applied[t.Domain] = t.Seq
	fn(&s.snap)
	s.publishLocked()
	return true
}

func (s *Store) resetLocked() {
	s.snap.Generation++
	s.snap.clearDomainData()
	s.snap.Session.Loading = false
	clear(s.inflight)
	clear(s.applied)
}

func (s *Store) discardLocked(t Ticket, reason string) {
	s.logger.Debug("Discarding stale response",
		zap.String("domain", string(t.Domain)),
		zap.Uint64("seq", t.Seq),
		zap.Uint64("generation", t.Generation),
		zap.String("scope", t.Scope.Name()),
		zap.String("reason", reason),
	)
	s.metrics.RecordStaleResponse(string(t.Domain))
}

func (s *Store) publishLocked() {
	s.snap.Version++
	for _, sub := range s.subs {
		select {
		case sub.ch <- s.snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- s.snap
		}
	}
}
