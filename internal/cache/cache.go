// Package cache provides a small TTL cache used to hold collection listings
// between tool calls.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// defaultMaxSize bounds a cache created with a non-positive size.
const defaultMaxSize = 100

// Entry represents a cached item with metadata
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
	CreatedAt time.Time
	HitCount  int
}

// Cache is a size-bounded TTL cache safe for concurrent use. When full, the
// expired entries are dropped first, then the oldest entry.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*Entry[V]
	maxSize int
	ttl     time.Duration
	clock   clock.Clock
}

// New creates a cache holding up to maxSize entries for ttl each. A nil clock
// means wall-clock time.
func New[V any](maxSize int, ttl time.Duration, clk clock.Clock) *Cache[V] {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Cache[V]{
		entries: make(map[string]*Entry[V]),
		maxSize: maxSize,
		ttl:     ttl,
		clock:   clk,
	}
}

// Get retrieves a value from the cache
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.clock.Now().After(entry.ExpiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	entry.HitCount++
	return entry.Value, true
}

// Set stores a value with the cache's TTL. A zero TTL disables caching.
func (c *Cache[V]) Set(key string, value V) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictExpiredLocked()
		if len(c.entries) >= c.maxSize {
			c.evictOldestLocked()
		}
	}

	now := c.clock.Now()
	c.entries[key] = &Entry[V]{
		Value:     value,
		ExpiresAt: now.Add(c.ttl),
		CreatedAt: now,
	}
}

// Delete removes a specific key from the cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DeleteByPrefix removes all entries with keys starting with prefix
func (c *Cache[V]) DeleteByPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			count++
		}
	}
	return count
}

// Clear removes all entries from the cache
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry[V])
}

// Size returns the number of entries in the cache
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries   int `json:"entries"`
	Expired   int `json:"expired"`
	TotalHits int `json:"total_hits"`
	MaxSize   int `json:"max_size"`
}

// Stats returns cache statistics
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Entries: len(c.entries), MaxSize: c.maxSize}
	now := c.clock.Now()
	for _, entry := range c.entries {
		s.TotalHits += entry.HitCount
		if now.After(entry.ExpiresAt) {
			s.Expired++
		}
	}
	return s
}

// evictExpiredLocked removes all expired entries (must hold lock)
func (c *Cache[V]) evictExpiredLocked() {
	now := c.clock.Now()
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}
}

// evictOldestLocked removes the oldest entry (must hold lock)
func (c *Cache[V]) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, entry := range c.entries {
		if first || entry.CreatedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.CreatedAt
			first = false
		}
	}

	if !first {
		delete(c.entries, oldestKey)
	}
}
