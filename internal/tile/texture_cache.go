package tile

import (
	"github.com/jaennil/guide_helper/backend/terrain/internal/raster"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/lru"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/metrics"
)

// TextureFactory turns a decoded image into a renderable resource.
type TextureFactory[T any] func(img *raster.Image) (T, error)

// TextureCache memoizes textures by image identity, with an independent LRU
// per layer. It is owned by the consumer goroutine.
type TextureCache[T any] struct {
	layers [layerCount]*lru.Map[*raster.Image, T]
}

// NewTextureCache creates a cache holding up to capacity textures per layer.
// onEvict, if set, is called for each texture dropped by the cache.
func NewTextureCache[T any](capacity int, onEvict func(Layer, T)) *TextureCache[T] {
	c := &TextureCache[T]{}
	for i := range c.layers {
		layer := Layer(i)
		c.layers[i] = lru.NewMapWithEvict(capacity, func(_ *raster.Image, texture T) {
			metrics.TextureCacheEvictions.WithLabelValues(layer.String()).Inc()
			if onEvict != nil {
				onEvict(layer, texture)
			}
		})
	}
	return c
}

// GetOrCreateTexture returns the texture cached for img in layer, calling
// factory only on a miss. Failed creations are not cached.
func (c *TextureCache[T]) GetOrCreateTexture(layer Layer, img *raster.Image, factory TextureFactory[T]) (T, error) {
	cache := c.layers[layer]
	if texture, ok := cache.Get(img); ok {
		metrics.TextureCacheHits.WithLabelValues(layer.String()).Inc()
		return texture, nil
	}
	metrics.TextureCacheMisses.WithLabelValues(layer.String()).Inc()

	texture, err := factory(img)
	if err != nil {
		var zero T
		return zero, err
	}
	cache.Put(img, texture)
	return texture, nil
}

func (c *TextureCache[T]) Contains(layer Layer, img *raster.Image) bool {
	return c.layers[layer].Exists(img)
}

func (c *TextureCache[T]) Len(layer Layer) int {
	return c.layers[layer].Size()
}
