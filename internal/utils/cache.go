package utils

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheItem[V any] struct {
	data      V
	expiresAt time.Time
}

// TTLCache is a size-bounded LRU where every entry also carries an expiry.
// Safe for concurrent use.
type TTLCache[V any] struct {
	lruCache *lru.Cache[string, cacheItem[V]]
	now      func() time.Time
}

// NewTTLCache creates a cache holding at most size entries.
func NewTTLCache[V any](size int) *TTLCache[V] {
	l, err := lru.New[string, cacheItem[V]](size)
	if err != nil {
		// only fails for size <= 0
		panic(err)
	}
	return &TTLCache[V]{lruCache: l, now: time.Now}
}

func (c *TTLCache[V]) Set(key string, data V, ttl time.Duration) {
	c.lruCache.Add(key, cacheItem[V]{data: data, expiresAt: c.now().Add(ttl)})
}

// Get returns the value and true if present and not expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	item, ok := c.lruCache.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(item.expiresAt) {
		c.lruCache.Remove(key)
		return zero, false
	}
	return item.data, true
}

// GetOrSet returns the cached value for key, creating it with create when
// missing or expired.
func (c *TTLCache[V]) GetOrSet(key string, ttl time.Duration, create func() V) V {
	if v, ok := c.Get(key); ok {
		return v
	}
	v := create()
	c.Set(key, v, ttl)
	return v
}

func (c *TTLCache[V]) Delete(key string) {
	c.lruCache.Remove(key)
}

// DeletePrefix removes every key starting with prefix.
func (c *TTLCache[V]) DeletePrefix(prefix string) {
	for _, k := range c.lruCache.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lruCache.Remove(k)
		}
	}
}

func (c *TTLCache[V]) Len() int {
	return c.lruCache.Len()
}
