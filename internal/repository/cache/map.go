package cache

import (
	"context"
	"sync"

	"github.com/jaennil/guide_helper/backend/terrain/pkg/lru"
)

const defaultMapCacheCapacity = 4096

// MapCache keeps the most recently stored tiles in memory.
type MapCache struct {
	mu sync.Mutex
	m  *lru.Map[TileCacheKey, TileCacheValue]
}

func NewMapCache(capacity int) *MapCache {
	if capacity <= 0 {
		capacity = defaultMapCacheCapacity
	}
	return &MapCache{
		m: lru.NewMap[TileCacheKey, TileCacheValue](capacity),
	}
}

var _ TileCache = (*MapCache)(nil)

func (c *MapCache) Get(_ context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, exists := c.m.Get(k)
	return v, exists, nil
}

func (c *MapCache) Set(_ context.Context, k TileCacheKey, v TileCacheValue) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.m.Exists(k) {
		c.m.Remove(k)
	}
	c.m.Put(k, v)
	return nil
}

func (c *MapCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m.Size()
}

func (c *MapCache) Close() error {
	return nil
}
