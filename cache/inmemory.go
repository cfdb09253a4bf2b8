package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// inMemoryCacheItem represents a cache item with expiration.
type inMemoryCacheItem struct {
	value      []byte
	expiration time.Time
}

// isExpired checks if the item has expired.
func (i *inMemoryCacheItem) isExpired() bool {
	if i.expiration.IsZero() {
		return false
	}
	return time.Now().After(i.expiration)
}

// InMemoryCache is a thread-safe in-memory cache implementation.
// Expired items are purged lazily on access and by a periodic sweep.
type InMemoryCache struct {
	items     sync.Map // map[string]*inMemoryCacheItem
	closeMu   sync.Mutex
	stopSweep chan struct{}
	sweepInt  time.Duration
}

const defaultSweepInterval = 5 * time.Minute

// NewInMemoryCache creates a new in-memory cache with the default sweep interval.
func NewInMemoryCache() RawCache {
	return NewInMemoryCacheWithInterval(defaultSweepInterval)
}

// NewInMemoryCacheWithInterval creates a new in-memory cache sweeping expired
// items every interval.
func NewInMemoryCacheWithInterval(interval time.Duration) RawCache {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	cache := &InMemoryCache{
		stopSweep: make(chan struct{}),
		sweepInt:  interval,
	}

	go cache.startSweep()

	return cache
}

// startSweep periodically removes expired items.
func (c *InMemoryCache) startSweep() {
	ticker := time.NewTicker(c.sweepInt)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopSweep:
			return
		}
	}
}

// sweep removes expired items from the cache.
func (c *InMemoryCache) sweep() {
	c.items.Range(func(key, value any) bool {
		item, ok := value.(*inMemoryCacheItem)
		if ok && item.isExpired() {
			c.items.Delete(key)
		}
		return true
	})
}

// Get retrieves an item from the cache.
func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := c.items.Load(key)
	if !ok {
		return nil, false, nil
	}

	item, ok := value.(*inMemoryCacheItem)
	if !ok || item.isExpired() {
		c.items.Delete(key)
		return nil, false, nil
	}

	return item.value, true, nil
}

// Set sets an item in the cache with the specified TTL.
func (c *InMemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	item := &inMemoryCacheItem{
		value: value,
	}

	if ttl > 0 {
		item.expiration = time.Now().Add(ttl)
	}

	c.items.Store(key, item)
	return nil
}

// Delete removes an item from the cache.
func (c *InMemoryCache) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

// DeletePrefix removes all items whose key starts with prefix.
func (c *InMemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.items.Range(func(key, _ any) bool {
		if k, ok := key.(string); ok && strings.HasPrefix(k, prefix) {
			c.items.Delete(key)
		}
		return true
	})
	return nil
}

// Flush clears all items from the cache.
func (c *InMemoryCache) Flush(_ context.Context) error {
	c.items.Range(func(key, _ any) bool {
		c.items.Delete(key)
		return true
	})
	return nil
}

// Close stops the sweep goroutine and releases resources.
func (c *InMemoryCache) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	select {
	case <-c.stopSweep:
		// Already closed
		return nil
	default:
		close(c.stopSweep)
	}

	return nil
}
