package cache

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadingCache is an LRUCache that fills misses through a loader. Concurrent
// misses on one key share a single load, unless an invalidation ran between
// them.
type LoadingCache[T any] struct {
	*LRUCache[T]
	group  singleflight.Group
	mu     sync.Mutex // orders stores against invalidations
	gen    atomic.Uint64
	hits   atomic.Int64
	misses atomic.Int64
}

func NewLoadingCache[T any](maxSize int, ttl time.Duration) *LoadingCache[T] {
	return &LoadingCache[T]{LRUCache: NewLRUCache[T](maxSize, ttl)}
}

// GetOrLoad returns the cached value for key, calling load on a miss. A value
// loaded while an invalidation ran is returned but not stored, and callers
// arriving after the invalidation start a fresh load instead of joining it.
func (c *LoadingCache[T]) GetOrLoad(key string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	start := c.gen.Load()
	flightKey := key + "#" + strconv.FormatUint(start, 10)
	v, err, _ := c.group.Do(flightKey, func() (any, error) {
		v, err := load()
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		if c.gen.Load() == start {
			c.Set(key, v)
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops every entry under prefix. Loads already in flight are not stored.
func (c *LoadingCache[T]) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen.Add(1)
	return c.DeletePrefix(prefix)
}

// Stats reports hit and miss counts since creation.
func (c *LoadingCache[T]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
