package predictions

import (
	"context"
	"sync"
	"time"

	"github.com/liamcoop/premium/premium"
)

type memoryEntry struct {
	result   premium.PremiumResult
	cachedAt time.Time
}

// MemoryCache is an in-process Cache with TTL expiry and a size bound.
// Thread-safe for concurrent access.
type MemoryCache struct {
	entries map[string]memoryEntry
	config  CacheConfig
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache(config CacheConfig) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		config:  config,
		now:     time.Now,
	}
}

// Get returns a copy of a live entry
func (c *MemoryCache) Get(_ context.Context, key string) (*premium.PremiumResult, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.expired(entry) {
		return nil, false, nil
	}
	res := entry.result
	return &res, true, nil
}

// Set stores a copy of res. When the cache is full, expired entries are
// dropped first, then the oldest entry.
func (c *MemoryCache) Set(_ context.Context, key string, res *premium.PremiumResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.config.Size > 0 && len(c.entries) >= c.config.Size {
		c.evict()
	}
	c.entries[key] = memoryEntry{result: *res, cachedAt: c.now()}
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// evicted
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) expired(e memoryEntry) bool {
	return c.config.TTL > 0 && c.now().Sub(e.cachedAt) > c.config.TTL
}

// evict must be called with the write lock held
func (c *MemoryCache) evict() {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
			continue
		}
		if oldestKey == "" || e.cachedAt.Before(oldestAt) {
			oldestKey, oldestAt = key, e.cachedAt
		}
	}
	if len(c.entries) >= c.config.Size && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
