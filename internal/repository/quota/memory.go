// Package quota provides counter stores for the rate governor: an in-process
// store for single-instance deployments and a Redis/Valkey store for
// horizontally scaled ones.
package quota

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often expired buckets are reclaimed.
const sweepInterval = time.Minute

type entry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is an in-process fixed-window counter store. The single mutex
// makes every Incr a linearizable test-and-increment per key.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]entry
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   make(map[string]entry),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Incr increments the counter at key and returns the new count. The entry
// expires after ttl; expired entries restart from zero.
func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	e, ok := s.entries[key]
	if !ok || now.After(e.expiresAt) {
		e = entry{expiresAt: now.Add(ttl)}
	}
	e.count++
	s.entries[key] = e

	return e.count, nil
}

// Len returns the number of live buckets. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweep drops expired buckets. Runs at most once per sweepInterval so the
// hot path stays O(1) between sweeps. Caller holds the mutex.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}
