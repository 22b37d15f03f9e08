// Package cache provides an in-process TTL cache for model lists
// fetched from remote instances, so the instance picker does not hit
// the network on every open.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"alpaca/internal/metrics"
	"alpaca/internal/storage"
)

// DefaultTTL is how long an entry stays fresh unless the caller
// overrides it per Set.
const DefaultTTL = 5 * time.Minute

// Key builds the cache key for an instance/model-list pair.
func Key(instanceID, model string) string {
	return instanceID + ":" + model
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Stats is a point-in-time snapshot of cache contents and
// effectiveness counters. Total = Valid + Expired.
type Stats struct {
	Total   int
	Valid   int
	Expired int
	TTL     time.Duration
	Hits    uint64
	Misses  uint64
}

// Cache is a TTL map guarded by a single mutex. Expired entries are
// dropped lazily on Get and in bulk by CleanupExpired.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	hits    uint64
	misses  uint64

	// now is swapped out in tests that need a fixed clock.
	now func() time.Time
}

func New[V any]() *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// Get returns the cached value for key if present and unexpired.
// An expired entry is removed and counts as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.now().Before(e.expiresAt) {
		c.hits++
		metrics.Global().CacheHits.Inc()
		return e.value, true
	}
	if ok {
		delete(c.entries, key)
	}
	c.misses++
	metrics.Global().CacheMisses.Inc()
	var zero V
	return zero, false
}

// Set stores value under key for ttl. A non-positive ttl falls back to
// DefaultTTL.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

// Invalidate removes key and reports whether an entry was present.
func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear drops every entry. Hit/miss counters survive.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// CleanupExpired removes all expired entries and reports how many were
// dropped.
func (c *Cache[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Stats{Total: len(c.entries), TTL: DefaultTTL, Hits: c.hits, Misses: c.misses}
	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			st.Valid++
		} else {
			st.Expired++
		}
	}
	return st
}

var (
	modelsOnce sync.Once
	models     *Cache[[]string]
)

// Models returns the process-wide model list cache.
func Models() *Cache[[]string] {
	modelsOnce.Do(func() {
		models = New[[]string]()
	})
	return models
}

// OnlineModels returns the remote model list stored for an instance,
// serving repeat lookups from c until the entry expires.
func OnlineModels(ctx context.Context, c *Cache[[]string], store *storage.Store, instanceID string, ttl time.Duration) ([]string, error) {
	key := Key(instanceID, "models")
	if list, ok := c.Get(key); ok {
		return list, nil
	}

	payload, err := store.GetOnlineModelList(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal([]byte(payload), &list); err != nil {
		return nil, fmt.Errorf("decode model list for %s: %w", instanceID, err)
	}
	c.Set(key, list, ttl)
	return list, nil
}
