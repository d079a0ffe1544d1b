package tile

import (
	"errors"
	"sync"

	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
	"github.com/jaennil/guide_helper/backend/terrain/internal/raster"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/lru"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// ImageFactory creates the image of one layer for key. It returns ErrNoData
// when there is nothing at that key.
type ImageFactory func(key quadtree.Key) (*raster.Image, error)

type layerImageCache struct {
	mu    sync.Mutex
	cache *lru.Map[quadtree.Key, TileImage]
	group singleflight.Group
}

// ImageCaches memoizes decoded images per layer, keyed by requested tile key.
// Safe for concurrent use by worker goroutines.
type ImageCaches struct {
	layers [layerCount]*layerImageCache
	logger logger.Logger
}

func NewImageCaches(capacity int, l logger.Logger) *ImageCaches {
	c := &ImageCaches{logger: l}
	for i := range c.layers {
		c.layers[i] = &layerImageCache{cache: lru.NewMap[quadtree.Key, TileImage](capacity)}
	}
	return c
}

// GetOrCreateImage returns the cached image for requested, or creates it by
// calling factory for requested and then each ancestor down to minLevel until
// one has data. A result without an image means no level had data.
// Concurrent requests for the same key share one creation. Canceled creations
// are not cached.
func (c *ImageCaches) GetOrCreateImage(layer Layer, requested quadtree.Key, minLevel int, canceled CancelSupplier, factory ImageFactory) (TileImage, error) {
	lc := c.layers[layer]

	lc.mu.Lock()
	img, ok := lc.cache.Get(requested)
	lc.mu.Unlock()
	if ok {
		metrics.ImageCacheHits.WithLabelValues(layer.String()).Inc()
		return img, nil
	}
	metrics.ImageCacheMisses.WithLabelValues(layer.String()).Inc()

	for {
		v, err, shared := lc.group.Do(requested.String(), func() (any, error) {
			img, err := createWithFallback(requested, minLevel, canceled, factory)
			if err != nil {
				return TileImage{}, err
			}

			lc.mu.Lock()
			lc.cache.PutSafe(requested, img)
			lc.mu.Unlock()
			return img, nil
		})

		// Another request owned the creation and was canceled; retry on
		// behalf of this one.
		if shared && errors.Is(err, ErrCanceled) && !canceled() {
			c.logger.Debug("retrying image creation after shared cancel", "layer", layer, "tile", requested)
			continue
		}
		if err != nil {
			return TileImage{}, err
		}
		return v.(TileImage), nil
	}
}

func createWithFallback(requested quadtree.Key, minLevel int, canceled CancelSupplier, factory ImageFactory) (TileImage, error) {
	for level := requested.Level; level >= minLevel && level >= 0; level-- {
		if canceled() {
			return TileImage{}, ErrCanceled
		}

		key := quadtree.CreateAncestorKey(requested, level)
		img, err := factory(key)
		if err == nil && img != nil {
			return TileImage{Image: img, Key: key}, nil
		}
		if err != nil && !errors.Is(err, ErrNoData) {
			return TileImage{}, err
		}
	}
	return TileImage{}, nil
}

// Len returns the number of cached entries for layer.
func (c *ImageCaches) Len(layer Layer) int {
	lc := c.layers[layer]
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.cache.Size()
}
