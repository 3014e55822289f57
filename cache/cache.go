/*
Package cache provides caching for resolved giveaway lookups.

The same origin dynamic is often forwarded many times in one feed; caching the
resolved lottery outcome per origin id keeps the sweep from asking the
giveaway service the same question over and over. Unresolved outcomes are
never cached: an ambiguous answer must be re-asked, not remembered.
*/
package cache

import (
	"sync"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/types"
)

// cacheItem is a cached outcome with expiration
type cacheItem struct {
	outcome   types.LotteryOutcome
	expiresAt time.Time
}

// isExpired checks if the cache item has expired
func (c *cacheItem) isExpired() bool {
	return time.Now().After(c.expiresAt)
}

// LotteryCache defines the lookup cache operations
type LotteryCache interface {
	Get(dynamicID string) (types.LotteryOutcome, bool)
	Set(dynamicID string, outcome types.LotteryOutcome)
	Clear()
}

// InMemoryCache implements an in-memory lottery outcome cache with TTL support
type InMemoryCache struct {
	items map[string]*cacheItem
	mutex sync.RWMutex
	ttl   time.Duration
	stop  chan struct{}
}

// NewInMemoryCache creates a new in-memory cache with the given TTL
func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	cache := &InMemoryCache{
		items: make(map[string]*cacheItem),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}

	go cache.startCleanup()

	return cache
}

// Get retrieves a cached outcome
func (c *InMemoryCache) Get(dynamicID string) (types.LotteryOutcome, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.items[dynamicID]
	if !exists || item.isExpired() {
		return types.LotteryOutcome{}, false
	}

	return item.outcome, true
}

// Set stores a resolved outcome. Unresolved outcomes are dropped.
func (c *InMemoryCache) Set(dynamicID string, outcome types.LotteryOutcome) {
	if !outcome.Resolved {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[dynamicID] = &cacheItem{
		outcome:   outcome,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Clear removes all cached outcomes
func (c *InMemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items = make(map[string]*cacheItem)
}

// Close stops the cleanup goroutine
func (c *InMemoryCache) Close() {
	close(c.stop)
}

// startCleanup periodically removes expired items
func (c *InMemoryCache) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes expired items
func (c *InMemoryCache) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for id, item := range c.items {
		if item.isExpired() {
			delete(c.items, id)
		}
	}
}
