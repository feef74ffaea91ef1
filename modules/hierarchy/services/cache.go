package services

import (
	"strings"
	"sync"
	"time"
)

// TreeCache caches assembled tree views. Invalidate takes a key prefix so a
// whole tenant's entries can be dropped after a structural mutation. The
// cache is injected and owned by the caller's lifecycle; there is no
// package-level instance.
type TreeCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Invalidate(prefix string)
}

type memoryCacheEntry struct {
	value     any
	expiresAt time.Time
}

type memoryTreeCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryCacheEntry
	now     func() time.Time
}

// NewMemoryTreeCache returns an in-process TTL cache.
func NewMemoryTreeCache(ttl time.Duration) TreeCache {
	return &memoryTreeCache{
		ttl:     ttl,
		entries: make(map[string]memoryCacheEntry),
		now:     time.Now,
	}
}

func (c *memoryTreeCache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (c *memoryTreeCache) Set(key string, value any) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryCacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *memoryTreeCache) Invalidate(prefix string) {
	if prefix == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}
