package binding

import (
	"sync"
	"time"
)

// Entry is a cached data-source value and when it was fetched.
type Entry struct {
	Value     any
	FetchedAt time.Time
}

// Cache holds the last successful fetch per URL. Entries are never mutated
// after Put; concurrent refreshes of one URL may both write, last wins.
type Cache interface {
	Get(url string) (Entry, bool)
	Put(url string, e Entry)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

// Get returns the entry for url.
func (c *MemoryCache) Get(url string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[url]
	return e, ok
}

// Put stores the entry for url.
func (c *MemoryCache) Put(url string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = e
}

// Len returns the number of cached URLs.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
