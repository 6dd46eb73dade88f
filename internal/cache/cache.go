package cache

import (
	"sync"
	"time"
)

// item is a cached model with expiration
type item struct {
	value     interface{}
	expiresAt time.Time
}

func (i *item) isExpired() bool {
	return time.Now().After(i.expiresAt)
}

// ModelCache provides thread-safe caching of decoded biometric models with
// TTL. Verification is read-heavy; enrollment invalidates.
type ModelCache struct {
	mu    sync.RWMutex
	items map[string]*item
	ttl   time.Duration
}

// NewModelCache creates a new cache with the specified TTL
func NewModelCache(ttl time.Duration) *ModelCache {
	cache := &ModelCache{
		items: make(map[string]*item),
		ttl:   ttl,
	}

	// Start cleanup goroutine
	go cache.cleanup()

	return cache
}

// cleanup removes expired items periodically
func (c *ModelCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		for key, it := range c.items {
			if it.isExpired() {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}

// KeystrokeKey is the cache key for a user's keystroke model.
func KeystrokeKey(username string) string {
	return "keystroke:" + username
}

// VoiceKey is the cache key for a user's voice reference.
func VoiceKey(username string) string {
	return "voice:" + username
}

// Get retrieves an item from the cache
func (c *ModelCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, exists := c.items[key]
	if !exists || it.isExpired() {
		if exists && it.isExpired() {
			go func() {
				c.mu.Lock()
				delete(c.items, key)
				c.mu.Unlock()
			}()
		}
		return nil, false
	}

	return it.value, true
}

// Set stores an item in the cache
func (c *ModelCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &item{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes an item from the cache
func (c *ModelCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// InvalidateUser drops both modality entries for a user. Called on
// re-enrollment and account deletion.
func (c *ModelCache) InvalidateUser(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, KeystrokeKey(username))
	delete(c.items, VoiceKey(username))
}

// Clear removes all items from the cache
func (c *ModelCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*item)
}

// Size returns the number of items in the cache
func (c *ModelCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats returns cache statistics
func (c *ModelCache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	totalItems := len(c.items)
	expiredItems := 0

	for _, it := range c.items {
		if it.isExpired() {
			expiredItems++
		}
	}

	return map[string]interface{}{
		"total_items":   totalItems,
		"expired_items": expiredItems,
		"active_items":  totalItems - expiredItems,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}
