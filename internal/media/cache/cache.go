// Package cache provides the short-lived in-memory metadata store that
// avoids redundant acquisition-tool invocations for repeated requests.
package cache

import (
	"sync"
	"time"

	"github.com/vidfetch/vidfetch/internal/media"
)

// Cache is a capacity-bounded, TTL-expiring store of ResourceInfo keyed by
// resource id. Expiration is checked lazily on read; Sweep exists for a
// scheduler-driven cleanup and is never required for correctness. Safe for
// concurrent use.
type Cache struct {
	mu       sync.RWMutex
	items    map[string]item
	order    []string // insertion order, oldest first
	ttl      time.Duration
	maxItems int
}

type item struct {
	info      *media.ResourceInfo
	expiresAt time.Time
}

// Config holds cache configuration.
type Config struct {
	TTL      time.Duration
	MaxItems int
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		TTL:      5 * time.Minute,
		MaxItems: 200,
	}
}

// New creates a cache with the given configuration.
func New(cfg Config) *Cache {
	if cfg.TTL == 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxItems == 0 {
		cfg.MaxItems = 200
	}
	return &Cache{
		items:    make(map[string]item),
		ttl:      cfg.TTL,
		maxItems: cfg.MaxItems,
	}
}

// Get returns the cached info for id, or a miss if absent or expired.
func (c *Cache) Get(id string) (*media.ResourceInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[id]
	if !ok || time.Now().After(it.expiresAt) {
		return nil, false
	}
	return it.info, true
}

// Put stores info under id with the cache's default TTL, evicting the
// oldest-inserted entry first when at capacity.
func (c *Cache) Put(id string, info *media.ResourceInfo) {
	c.PutWithTTL(id, info, c.ttl)
}

// PutWithTTL stores info with a custom TTL.
func (c *Cache) PutWithTTL(id string, info *media.ResourceInfo, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[id]; !exists {
		for len(c.items) >= c.maxItems && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.items, oldest)
		}
		c.order = append(c.order, id)
	}
	c.items[id] = item{info: info, expiresAt: time.Now().Add(ttl)}
}

// Delete removes an entry.
func (c *Cache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(id)
}

// Clear drops every entry. Dropping the cache never violates any invariant
// other than performance.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]item)
	c.order = nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Sweep removes expired entries and reports how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var dropped int
	for id, it := range c.items {
		if now.After(it.expiresAt) {
			c.remove(id)
			dropped++
		}
	}
	return dropped
}

// remove deletes an entry and its order slot. Caller holds the lock.
func (c *Cache) remove(id string) {
	if _, ok := c.items[id]; !ok {
		return
	}
	delete(c.items, id)
	for i, key := range c.order {
		if key == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
