package tile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jaennil/guide_helper/backend/terrain/internal/elevation"
	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/lru"
)

const altitudeCacheCapacity = 1024

// AltitudeProvider samples terrain elevation at a point from the finest
// available tile of an elevation source. Safe for concurrent use.
type AltitudeProvider struct {
	source   Source
	maxLevel int
	logger   logger.Logger

	mu    sync.Mutex
	cache *lru.Map[quadtree.Key, TileImage]

	scheduler Scheduler
	loading   atomic.Bool
}

func NewAltitudeProvider(source Source, maxLevel int, scheduler Scheduler, l logger.Logger) *AltitudeProvider {
	return &AltitudeProvider{
		source:    source,
		maxLevel:  maxLevel,
		logger:    l,
		cache:     lru.NewMap[quadtree.Key, TileImage](altitudeCacheCapacity),
		scheduler: scheduler,
	}
}

// Altitude returns the elevation in meters at lat, lon in radians, loading
// tiles as needed. It returns 0 when no tile covers the point.
func (p *AltitudeProvider) Altitude(ctx context.Context, lat, lon float64) (float64, error) {
	key := p.keyAt(lat, lon)

	img, ok, err := p.findHighestLevelTile(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	return sampleAltitude(img, lat, lon)
}

// TryAltitude only consults tiles already cached.
func (p *AltitudeProvider) TryAltitude(lat, lon float64) (float64, bool) {
	p.mu.Lock()
	img, ok := p.cache.Get(p.keyAt(lat, lon))
	p.mu.Unlock()
	if !ok {
		return 0, false
	}

	altitude, err := sampleAltitude(img, lat, lon)
	if err != nil {
		return 0, false
	}
	return altitude, true
}

// AltitudeOrRequestLoad is TryAltitude that, on a miss, schedules a
// background load of the tile when no other such load is running.
func (p *AltitudeProvider) AltitudeOrRequestLoad(lat, lon float64) (float64, bool) {
	if altitude, ok := p.TryAltitude(lat, lon); ok {
		return altitude, true
	}

	if p.loading.CompareAndSwap(false, true) {
		p.scheduler.Go(func() {
			defer p.loading.Store(false)
			if _, err := p.Altitude(context.Background(), lat, lon); err != nil {
				p.logger.Warn("failed to load altitude tile", "lat", lat, "lon", lon, "error", err)
			}
		})
	}
	return 0, false
}

func (p *AltitudeProvider) keyAt(lat, lon float64) quadtree.Key {
	return quadtree.KeyAtLevelIntersectingLonLatPoint(p.maxLevel, quadtree.Vec2{X: lon, Y: lat})
}

func (p *AltitudeProvider) findHighestLevelTile(ctx context.Context, highest quadtree.Key) (TileImage, bool, error) {
	p.mu.Lock()
	img, ok := p.cache.Get(highest)
	p.mu.Unlock()
	if ok {
		return img, true, nil
	}

	canceled := func() bool { return ctx.Err() != nil }

	for level := highest.Level; level >= 0; level-- {
		key := quadtree.CreateAncestorKey(highest, level)
		image, err := p.source.CreateImage(ctx, key, canceled)
		if errors.Is(err, ErrNoData) || (err == nil && image == nil) {
			continue
		}
		if err != nil {
			return TileImage{}, false, err
		}

		found := TileImage{Image: image, Key: key}

		p.mu.Lock()
		p.cache.PutSafe(highest, found)
		if key != highest {
			p.cache.PutSafe(key, found)
		}
		p.mu.Unlock()

		return found, true, nil
	}
	return TileImage{}, false, nil
}

func sampleAltitude(img TileImage, lat, lon float64) (float64, error) {
	bounds := quadtree.KeyLatLonBounds(img.Key)
	sampler, err := elevation.NewHeightMapSampler(img.Image, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	if err != nil {
		return 0, err
	}
	return sampler.Sample(lat, lon), nil
}
