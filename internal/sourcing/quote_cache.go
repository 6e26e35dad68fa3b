package sourcing

import (
	"fmt"
	"sync"
	"time"
)

// quoteCache caches vendor quotes by (vendor, part, vehicle) for the
// duration of a batch. Reads are shared across concurrent sourcing
// calls; writes are atomic overwrite-by-key under the lock.
type quoteCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]quoteCacheEntry
}

type quoteCacheEntry struct {
	result    *VendorQuoteResult
	expiresAt time.Time
}

func newQuoteCache(ttl time.Duration) *quoteCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &quoteCache{
		ttl:     ttl,
		entries: make(map[string]quoteCacheEntry),
	}
}

func quoteKey(vendorID string, req QuoteRequest) string {
	part := req.PartNumber
	if part == "" {
		part = req.Description
	}
	return fmt.Sprintf("%s|%s|%s", vendorID, part, vehicleVIN(req.Vehicle))
}

func (c *quoteCache) get(key string) (*VendorQuoteResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.result, true
}

// put stores only successful quotes; failures must be retried on the
// next line or document that needs the same part.
func (c *quoteCache) put(key string, result *VendorQuoteResult) {
	if !result.Responded() {
		return
	}
	c.mu.Lock()
	c.entries[key] = quoteCacheEntry{result: result, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}
