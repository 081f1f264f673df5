package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is a bounded, TTL-aware least-recently-used cache.
// It is safe for concurrent use.
type LRUCache[K comparable, V any] struct {
	items      map[K]*list.Element
	order      *list.List
	capacity   int
	defaultTTL time.Duration
	now        func() time.Time
	mu         sync.Mutex
}

type entry[K comparable, V any] struct {
	expiresAt time.Time
	key       K
	value     V
}

// NewLRUCache creates a new LRU cache.
// Non-positive arguments fall back to 1000 entries and a five minute TTL.
func NewLRUCache[K comparable, V any](capacity int, defaultTTL time.Duration) *LRUCache[K, V] {
	if capacity <= 0 {
		capacity = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}

	return &LRUCache[K, V]{
		items:      make(map[K]*list.Element),
		order:      list.New(),
		capacity:   capacity,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get retrieves a live value and marks it most recently used.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}

	e := el.Value.(*entry[K, V])
	if c.now().After(e.expiresAt) {
		c.removeElement(el)
		return zero, false
	}

	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores a value. A non-positive ttl uses the default TTL.
func (c *LRUCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	for len(c.items) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
	}

	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
}

// Remove deletes key and reports whether it was present.
func (c *LRUCache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
		return true
	}
	return false
}

// Size returns the number of entries, including expired ones not yet evicted.
func (c *LRUCache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the maximum number of entries.
func (c *LRUCache[K, V]) Capacity() int {
	return c.capacity
}

// CleanupExpired removes all expired entries and returns how many were removed.
func (c *LRUCache[K, V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*entry[K, V]).expiresAt) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Must be called with lock held.
func (c *LRUCache[K, V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[K, V]).key)
}
