// Package cache stores model responses so identical prompts are not paid for twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ResponseCache stores raw model responses keyed by a request fingerprint.
// Implementations must be safe for concurrent use.
type ResponseCache interface {
	// Get returns the cached value. A miss is ("", false, nil).
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value for ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Name identifies the backend in metrics and logs.
	Name() string
}

// Key derives a stable cache key from the given parts.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return "recap:resp:" + hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is a process-local ResponseCache backed by LRUCache.
type MemoryCache struct {
	lru *LRUCache[string, string]
}

// NewMemoryCache creates an in-memory response cache.
func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: NewLRUCache[string, string](capacity, ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.lru.Set(key, value, ttl)
	return nil
}

func (m *MemoryCache) Name() string { return "memory" }

// Len returns the number of stored responses.
func (m *MemoryCache) Len() int { return m.lru.Size() }
