// Package cache provides a small in-memory TTL cache. Expired entries are
// dropped when they are next read; nothing sweeps in the background.
package cache

import (
	"sync"
	"time"
)

// Entry is a cached value with its write time and lifetime.
type Entry[T any] struct {
	Data      T
	Timestamp time.Time
	TTL       time.Duration
}

// Valid reports whether the entry is still fresh at now.
func (e Entry[T]) Valid(now time.Time) bool {
	return now.Sub(e.Timestamp) < e.TTL
}

// Cache maps string keys to entries of type T.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]Entry[T]
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache whose entries live for ttl unless set with SetWithTTL.
func New[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		entries: make(map[string]Entry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the value for key if present and fresh. A stale entry is
// removed.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !e.Valid(c.now()) {
		delete(c.entries, key)
		return zero, false
	}
	return e.Data, true
}

// Set stores v under key with the default TTL.
func (c *Cache[T]) Set(key string, v T) {
	c.SetWithTTL(key, v, c.ttl)
}

// SetWithTTL stores v under key with an explicit TTL.
func (c *Cache[T]) SetWithTTL(key string, v T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry[T]{Data: v, Timestamp: c.now(), TTL: ttl}
}

// Invalidate removes key.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry[T])
}

// Len returns the number of stored entries, including stale ones that have
// not been read since they expired.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
