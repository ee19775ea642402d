// Package memory implements the guest HistoryStore as a lock-striped
// in-process map with idle-timeout eviction.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/relay"
)

// DefaultShards is the number of lock stripes.
const DefaultShards = 32

// DefaultTTL is the idle timeout after which a guest session is dropped.
const DefaultTTL = 30 * time.Minute

var _ relay.HistoryStore = (*Store)(nil)

type entry struct {
	session  relay.Session
	lastSeen time.Time
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]entry
}

// Store is a concurrency-safe guest session store. Sessions live for the
// process lifetime unless idle for longer than the TTL.
type Store struct {
	shards []*shard
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the idle timeout. Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// WithShards sets the number of lock stripes.
func WithShards(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shards = make([]*shard, n)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used by the sweep loop.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store.
func New(opts ...Option) *Store {
	s := &Store{
		shards: make([]*shard, DefaultShards),
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]entry)}
	}
	return s
}

func (s *Store) shard(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *Store) expired(e entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.lastSeen) > s.ttl
}

// Load returns a copy of the session. Missing and expired sessions yield an
// error wrapping relay.ErrNotFound.
func (s *Store) Load(_ context.Context, id string) (relay.Session, error) {
	sh := s.shard(id)
	now := s.now()
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.sessions[id]
	if ok && s.expired(e, now) {
		delete(sh.sessions, id)
		ok = false
	}
	if !ok {
		return relay.Session{}, fmt.Errorf("guest session %s: %w", id, relay.ErrNotFound)
	}
	e.lastSeen = now
	sh.sessions[id] = e
	return e.session.Clone(), nil
}

// Save replaces the session record.
func (s *Store) Save(_ context.Context, session relay.Session) error {
	if session.ID == "" {
		return fmt.Errorf("save guest session without id: %w", relay.ErrPersistence)
	}
	sh := s.shard(session.ID)
	now := s.now()
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.sessions[session.ID] = entry{session: session.Clone(), lastSeen: now}
	return nil
}

// Reset deletes the session. Resetting an unknown session is not an error.
func (s *Store) Reset(_ context.Context, id string) error {
	sh := s.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired or not.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}

// Sweep drops every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, e := range sh.sessions {
			if s.expired(e, now) {
				delete(sh.sessions, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("swept guest sessions", "removed", n)
			}
		}
	}
}
