// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

// Package requestcache provides the request-fingerprint result cache: a
// thread-safe LRU with per-entry TTL and single-flight coalescing of
// concurrent computations for the same fingerprint.
package requestcache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// entry is a node in the LRU list with its own expiry.
type entry struct {
	key       string
	value     any
	prev      *entry
	next      *entry
	createdAt time.Time
	expiresAt time.Time
	accesses  int64
}

// Cache implements a thread-safe Least Recently Used cache with per-entry TTL
// and single-flight coalescing.
//
// Key features:
//   - O(1) Get, Set, Remove operations
//   - O(1) LRU eviction when capacity is reached
//   - Per-entry TTL with lazy expiration
//   - Do() collapses concurrent same-key computations to one in-flight call
//
// This implementation uses a doubly-linked list for ordering and a hashmap
// for lookups.
type Cache struct {
	mu sync.Mutex

	// capacity is the maximum number of entries
	capacity int

	// defaultTTL applies when Set is called without an explicit TTL
	defaultTTL time.Duration

	// items maps keys to linked list nodes for O(1) lookup
	items map[string]*entry

	// head and tail are sentinel nodes for the doubly-linked list
	// head.next is the most recently used, tail.prev is the least recently used
	head *entry
	tail *entry

	// stats
	hits      int64
	misses    int64
	evictions int64

	group singleflight.Group
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	Capacity  int   `json:"capacity"`
}

// New creates a cache with the given capacity and default TTL.
func New(capacity int, defaultTTL time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}

	c := &Cache{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		items:      make(map[string]*entry, capacity),
		head:       &entry{},
		tail:       &entry{},
	}

	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get retrieves a value. Expired entries are evicted and count as misses.
// Found entries are moved to the front (most recently used) and their access
// count incremented.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.items[key]
	if !exists {
		c.misses++
		return nil, false
	}

	if time.Now().After(e.expiresAt) {
		c.removeEntry(e)
		c.misses++
		return nil, false
	}

	c.moveToFront(e)
	e.accesses++
	c.hits++
	return e.value, true
}

// Set stores a value under key with the given TTL (0 means the default).
// The LRU victim is evicted when the cache is full.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if e, exists := c.items[key]; exists {
		e.value = value
		e.createdAt = now
		e.expiresAt = now.Add(ttl)
		c.moveToFront(e)
		return
	}

	e := &entry{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}

	c.addToFront(e)
	c.items[key] = e

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Remove deletes a key. Returns true if it was present.
func (c *Cache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.items[key]; exists {
		c.removeEntry(e)
		return true
	}
	return false
}

// Do returns the cached value for key, or runs fn exactly once for all
// concurrent callers with the same key and caches its result under the
// default TTL. Errors are not cached.
func (c *Cache) Do(key string, fn func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A winner may have populated the cache between the miss and the
		// singleflight admission.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := fn()
		if err != nil {
			return nil, err
		}
		c.Set(key, v, 0)
		return v, nil
	})
	return v, err
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// CleanupExpired removes all expired entries. Returns the number removed.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0

	for e := c.tail.prev; e != c.head; {
		prev := e.prev
		if now.After(e.expiresAt) {
			c.removeEntry(e)
			removed++
		}
		e = prev
	}

	return removed
}

// Stats returns hit/miss/eviction counters and current size.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.items),
		Capacity:  c.capacity,
	}
}

// Internal methods (must be called with lock held)

func (c *Cache) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *Cache) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.addToFront(e)
}

func (c *Cache) removeEntry(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
}

func (c *Cache) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
	c.evictions++
}
