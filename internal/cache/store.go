// Package cache holds resolved places keyed by quantized coordinates.
//
// Entries never expire and are never evicted: the coordinate space an intake
// deployment sees is bounded and clustered, so the map stays small. A
// deployment resolving arbitrary global coordinates would need an eviction
// policy.
package cache

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/couchcryptid/issue-geocoder-service/internal/domain"
)

const shardCount = 16

// Entry is a cached resolution. A nil Place is a negative entry: resolution
// was attempted and failed.
type Entry struct {
	Place *domain.PlaceResult
}

// Negative reports whether the entry records a failed resolution.
func (e Entry) Negative() bool { return e.Place == nil }

// Stats describes the cache for diagnostics.
type Stats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// Store is a concurrency-safe map from CacheKey to Entry.
type Store struct {
	shards [shardCount]shard
}

type shard struct {
	mu      sync.RWMutex
	entries map[domain.CacheKey]Entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].entries = make(map[domain.CacheKey]Entry)
	}
	return s
}

// Get returns the entry for key and whether one exists.
func (s *Store) Get(key domain.CacheKey) (Entry, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	e, ok := sh.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Put stores entry under key, replacing any existing entry.
func (s *Store) Put(key domain.CacheKey, entry Entry) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.entries[key] = entry.clone()
}

// Clear removes all entries.
func (s *Store) Clear() {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		sh.entries = make(map[domain.CacheKey]Entry)
		sh.mu.Unlock()
	}
}

// Len returns the number of entries.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Stats returns the entry count and the sorted key strings. Shards are read
// one at a time, so under concurrent writes the snapshot is not atomic.
func (s *Store) Stats() Stats {
	keys := make([]string, 0)
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for k := range sh.entries {
			keys = append(keys, k.String())
		}
		sh.mu.RUnlock()
	}
	sort.Strings(keys)
	return Stats{Size: len(keys), Keys: keys}
}

func (s *Store) shardFor(key domain.CacheKey) *shard {
	return &s.shards[xxhash.Sum64String(key.String())%shardCount]
}

// clone copies the place so callers cannot mutate cached state.
func (e Entry) clone() Entry {
	if e.Place == nil {
		return e
	}
	p := *e.Place
	return Entry{Place: &p}
}
