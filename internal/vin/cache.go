package vin

import (
	"sync"
	"time"
)

// maxCacheEntries bounds memory within one batch; the sweep evicts
// expired entries before dropping live ones.
const maxCacheEntries = 4096

type cacheEntry struct {
	desc      *Descriptor
	expiresAt time.Time
}

// cache is a TTL-bounded decode cache shared across concurrent sourcing
// calls. Writes are atomic overwrite-by-key under the lock.
type cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newCache(ttl time.Duration) *cache {
	return &cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *cache) get(key string) (*Descriptor, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.desc, true
}

func (c *cache) put(key string, desc *Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= maxCacheEntries {
		c.sweepLocked()
	}
	c.entries[key] = cacheEntry{desc: desc, expiresAt: time.Now().Add(c.ttl)}
}

// sweepLocked drops expired entries; if nothing expired, clears the map
// rather than growing without bound.
func (c *cache) sweepLocked() {
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) >= maxCacheEntries {
		c.entries = make(map[string]cacheEntry)
	}
}

func (c *cache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
