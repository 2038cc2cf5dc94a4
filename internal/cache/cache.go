package cache

import (
	"sync"
	"time"
)

// Metrics receives hit and miss counts.
type Metrics interface {
	IncrementCacheHit()
	IncrementCacheMiss()
}

// CacheItem represents a cached item with expiration
type CacheItem struct {
	Data      []byte
	ExpiresAt time.Time
}

func (c *CacheItem) expiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Cache is a thread-safe byte cache with a fixed TTL. Profiles are cached
// as their JSON encoding keyed by child id.
type Cache struct {
	mu      sync.RWMutex
	items   map[string]*CacheItem
	ttl     time.Duration
	metrics Metrics
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewCache creates a cache and starts a janitor that evicts expired items
// every cleanupInterval. Close stops the janitor.
func NewCache(ttl, cleanupInterval time.Duration) *Cache {
	c := &Cache{
		items: make(map[string]*CacheItem),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.cleanup(cleanupInterval)
	}
	return c
}

// SetMetrics attaches a hit/miss counter.
func (c *Cache) SetMetrics(m Metrics) {
	c.mu.Lock()
	c.metrics = m
	c.mu.Unlock()
}

func (c *Cache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for key, item := range c.items {
		if item.expiredAt(now) {
			delete(c.items, key)
			evicted++
		}
	}
	return evicted
}

// Get retrieves an unexpired item.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	metrics := c.metrics
	fresh := exists && !item.expiredAt(c.now())
	c.mu.RUnlock()

	if metrics != nil {
		if fresh {
			metrics.IncrementCacheHit()
		} else {
			metrics.IncrementCacheMiss()
		}
	}
	if !fresh {
		if exists {
			c.Delete(key)
		}
		return nil, false
	}
	return item.Data, true
}

// Set stores an item in the cache
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &CacheItem{
		Data:      data,
		ExpiresAt: c.now().Add(c.ttl),
	}
}

// Delete removes an item from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*CacheItem)
}

// Size returns the number of items in the cache
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	expired := 0
	for _, item := range c.items {
		if item.expiredAt(now) {
			expired++
		}
	}

	return map[string]interface{}{
		"total_items":   len(c.items),
		"expired_items": expired,
		"active_items":  len(c.items) - expired,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}

// Close stops the janitor goroutine.
func (c *Cache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}
