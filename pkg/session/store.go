package session

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jobsync/chatgateway/internal/observability"
	"github.com/rs/zerolog"
)

const numShards = 32

// entry is the live state behind one session key. deleted is set, under mu,
// by the reaper when it unlinks the entry so that writers holding a stale
// pointer retry against the map.
type entry struct {
	mu         sync.RWMutex
	key        string
	turns      []Turn
	createdAt  time.Time
	lastActive time.Time
	deleted    bool
}

func (e *entry) snapshotLocked() Session {
	turns := make([]Turn, len(e.turns))
	copy(turns, e.turns)
	return Session{
		Key:        e.key,
		Turns:      turns,
		CreatedAt:  e.createdAt,
		LastActive: e.lastActive,
	}
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Store is a concurrent in-memory session store. Keys are spread across
// shards so map access for unrelated clients rarely contends, and each
// session has its own lock for its turn history.
type Store struct {
	shards [numShards]*shard
	active atomic.Int64
	now    func() time.Time
	logger zerolog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source used for creation timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	observability.EnsureRegistered()

	s := &Store{
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "session-store").Logger()

	return s
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%numShards]
}

// lookup returns the live entry for key, if any.
func (s *Store) lookup(key string) *entry {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.entries[key]
}

// getOrCreateEntry returns the live entry for key, registering a new empty
// one when none exists.
func (s *Store) getOrCreateEntry(key string) *entry {
	sh := s.shardFor(key)

	sh.mu.Lock()
	e, ok := sh.entries[key]
	if !ok {
		now := s.now()
		e = &entry{
			key:        key,
			createdAt:  now,
			lastActive: now,
		}
		sh.entries[key] = e
	}
	sh.mu.Unlock()

	if !ok {
		count := s.active.Add(1)
		observability.RecordSessionCreated()
		observability.SetActiveSessions(int(count))
		s.logger.Debug().Str("session_key", key).Msg("Session created")
	}

	return e
}

// GetOrCreate returns a copy of the session for key, creating an empty one
// if it does not exist.
func (s *Store) GetOrCreate(key string) (Session, error) {
	if err := ValidateKey(key); err != nil {
		return Session{}, err
	}

	for {
		e := s.getOrCreateEntry(key)
		e.mu.RLock()
		if e.deleted {
			e.mu.RUnlock()
			continue
		}
		snap := e.snapshotLocked()
		e.mu.RUnlock()
		return snap, nil
	}
}

// AppendExchange appends a user turn and its model reply as one unit and
// marks the session active at the given time. If the session was reaped in
// the meantime a fresh one is created for the exchange.
func (s *Store) AppendExchange(key, userText, modelText string, at time.Time) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if userText == "" || modelText == "" {
		return fmt.Errorf("exchange requires both user and model text")
	}
	if at.IsZero() {
		at = s.now()
	}

	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	for {
		e := s.getOrCreateEntry(key)

		e.mu.Lock()
		if e.deleted {
			e.mu.Unlock()
			continue
		}
		e.turns = append(e.turns,
			Turn{Role: RoleUser, Content: userText, Timestamp: at},
			Turn{Role: RoleModel, Content: modelText, Timestamp: at},
		)
		if at.After(e.lastActive) {
			e.lastActive = at
		}
		turns := len(e.turns)
		e.mu.Unlock()

		s.logger.Debug().
			Str("session_key", key).
			Int("turns", turns).
			Msg("Exchange appended")
		return nil
	}
}

// SnapshotHistory returns a copy of the turns for key. A missing session
// yields an empty history; it is not created.
func (s *Store) SnapshotHistory(key string) []Turn {
	e := s.lookup(key)
	if e == nil {
		return []Turn{}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.deleted {
		return []Turn{}
	}
	turns := make([]Turn, len(e.turns))
	copy(turns, e.turns)
	return turns
}

// Get returns a copy of the session for key without creating it.
func (s *Store) Get(key string) (Session, bool) {
	e := s.lookup(key)
	if e == nil {
		return Session{}, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.deleted {
		return Session{}, false
	}
	return e.snapshotLocked(), true
}

// LastActive returns when key last completed an exchange.
func (s *Store) LastActive(key string) (time.Time, bool) {
	e := s.lookup(key)
	if e == nil {
		return time.Time{}, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.deleted {
		return time.Time{}, false
	}
	return e.lastActive, true
}

// RemoveIfIdle deletes key if it has been idle for longer than timeout at
// now, returning the removed session. The idle test and the unlink happen
// under the same locks. A session whose lock is held by a request in flight
// is treated as active and kept.
func (s *Store) RemoveIfIdle(key string, now time.Time, timeout time.Duration) (Session, bool) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	e, ok := sh.entries[key]
	if !ok {
		sh.mu.Unlock()
		return Session{}, false
	}
	if !e.mu.TryLock() {
		sh.mu.Unlock()
		return Session{}, false
	}
	if now.Sub(e.lastActive) <= timeout {
		e.mu.Unlock()
		sh.mu.Unlock()
		return Session{}, false
	}

	e.deleted = true
	delete(sh.entries, key)
	removed := e.snapshotLocked()
	e.mu.Unlock()
	sh.mu.Unlock()

	count := s.active.Add(-1)
	observability.SetActiveSessions(int(count))
	s.logger.Debug().
		Str("session_key", key).
		Dur("idle", now.Sub(removed.LastActive)).
		Msg("Session deleted")

	return removed, true
}

// DeleteIfIdle is RemoveIfIdle without the removed session.
func (s *Store) DeleteIfIdle(key string, now time.Time, timeout time.Duration) bool {
	_, ok := s.RemoveIfIdle(key, now, timeout)
	return ok
}

// Keys returns a snapshot of the live session keys.
func (s *Store) Keys() []string {
	keys := make([]string, 0, s.CountActive())
	for _, sh := range s.shards {
		sh.mu.RLock()
		for key := range sh.entries {
			keys = append(keys, key)
		}
		sh.mu.RUnlock()
	}
	return keys
}

// CountActive returns the number of live sessions.
func (s *Store) CountActive() int {
	return int(s.active.Load())
}
