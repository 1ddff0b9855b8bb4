// Package lru provides a fixed-capacity least-recently-used cache.
//
// Eviction is purely recency based: no TTL and no eviction callbacks.
package lru

import (
	"errors"
	"slices"
	"sync/atomic"

	golru "github.com/hashicorp/golang-lru/v2"
)

// ErrInvalidCapacity is returned by New for a capacity below 1.
var ErrInvalidCapacity = errors.New("lru: capacity must be at least 1")

// Cache is a thread-safe bounded LRU cache.
type Cache[K comparable, V any] struct {
	capacity int
	items    *golru.Cache[K, V]

	// hits/misses/evictions use atomic operations
	hits      int64
	misses    int64
	evictions int64
}

// New creates a cache holding at most capacity entries.
func New[K comparable, V any](capacity int) (*Cache[K, V], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	items, err := golru.New[K, V](capacity)
	if err != nil {
		return nil, err
	}

	return &Cache[K, V]{capacity: capacity, items: items}, nil
}

// Get returns the value stored for key and marks it most recently used.
// Returns the zero value of V and false if not found.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return v, false
	}

	atomic.AddInt64(&c.hits, 1)
	return v, true
}

// Set stores value for key and marks it most recently used. When the cache
// grows past its capacity the least recently used entry is evicted.
func (c *Cache[K, V]) Set(key K, value V) {
	if c.items.Add(key, value) {
		atomic.AddInt64(&c.evictions, 1)
	}
}

// Delete removes key and reports whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	return c.items.Remove(key)
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	return c.items.Len()
}

// Cap returns the capacity fixed at construction.
func (c *Cache[K, V]) Cap() int {
	return c.capacity
}

// Keys returns the keys from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	keys := c.items.Keys()
	slices.Reverse(keys)
	return keys
}

// Statistics returns the cache counters.
func (c *Cache[K, V]) Statistics() Statistics {
	return Statistics{
		hits:      atomic.LoadInt64(&c.hits),
		misses:    atomic.LoadInt64(&c.misses),
		evictions: atomic.LoadInt64(&c.evictions),
		usage:     c.items.Len(),
	}
}
