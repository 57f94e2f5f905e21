// Package store implements the resource cache backing the loading engine:
// a sharded in-memory key/value store with hit/miss accounting.
//
// The store deliberately has no eviction policy, TTL, or cost accounting.
// Entries live until an explicit Evict or Clear; anything smarter is the
// caller's concern. What remains is the concurrency structure: keys are
// hashed across shards, each shard guarded by its own RWMutex, so reads
// on distinct keys rarely contend.
package store

import (
	"sync"
	"time"

	"github.com/Meta-Boltz/metamon-sub008/internal/util"
)

// Entry is a cached resource together with the time it was stored.
// Entries are immutable after insertion; a later Put replaces the
// entry wholesale rather than mutating it.
type Entry[V any] struct {
	Value    V
	CachedAt time.Time
}

// Store is a sharded key→resource cache. All methods are safe for
// concurrent use by multiple goroutines; Get/Put/Has/Evict are O(1).
type Store[V any] struct {
	shards []*shard[V]

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64
}

type shard[V any] struct {
	mu sync.RWMutex
	m  map[string]Entry[V]
}

// New constructs a store with the given shard count.
// shards <= 0 selects an automatic count (≈ 2*GOMAXPROCS, power of two).
func New[V any](shards int) *Store[V] {
	if shards <= 0 {
		shards = util.ReasonableShardCount()
	} else {
		shards = int(util.NextPow2(uint64(shards)))
	}
	ss := make([]*shard[V], shards)
	for i := range ss {
		ss[i] = &shard[V]{m: make(map[string]Entry[V])}
	}
	return &Store[V]{shards: ss}
}

// Get returns the cached value for key and a presence flag.
// It increments the hit or miss counter accordingly.
func (s *Store[V]) Get(key string) (V, bool) {
	sh := s.shard(key)
	sh.mu.RLock()
	e, ok := sh.m[key]
	sh.mu.RUnlock()
	if !ok {
		s.misses.Add(1)
		var zero V
		return zero, false
	}
	s.hits.Add(1)
	return e.Value, true
}

// Entry returns the full cache entry for key, including CachedAt.
// Unlike Get it does not touch the hit/miss counters; it exists for
// observability, not for the load path.
func (s *Store[V]) Entry(key string) (Entry[V], bool) {
	sh := s.shard(key)
	sh.mu.RLock()
	e, ok := sh.m[key]
	sh.mu.RUnlock()
	return e, ok
}

// Put inserts or replaces the value for key.
func (s *Store[V]) Put(key string, v V) {
	sh := s.shard(key)
	sh.mu.Lock()
	sh.m[key] = Entry[V]{Value: v, CachedAt: time.Now()}
	sh.mu.Unlock()
}

// Has reports whether key is cached, without counter side effects.
func (s *Store[V]) Has(key string) bool {
	sh := s.shard(key)
	sh.mu.RLock()
	_, ok := sh.m[key]
	sh.mu.RUnlock()
	return ok
}

// Evict removes key if present and returns true on success.
func (s *Store[V]) Evict(key string) bool {
	sh := s.shard(key)
	sh.mu.Lock()
	_, ok := sh.m[key]
	if ok {
		delete(sh.m, key)
	}
	sh.mu.Unlock()
	return ok
}

// Clear drops every entry across all shards. Counters are preserved.
func (s *Store[V]) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		clear(sh.m)
		sh.mu.Unlock()
	}
}

// Len returns the total number of resident entries across all shards.
func (s *Store[V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.m)
		sh.mu.RUnlock()
	}
	return total
}

// Counters returns the cumulative hit and miss counts.
func (s *Store[V]) Counters() (hits, misses uint64) {
	return s.hits.Load(), s.misses.Load()
}

func (s *Store[V]) shard(key string) *shard[V] {
	return s.shards[util.ShardIndex(util.Fnv64a(key), len(s.shards))]
}
