package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
	"github.com/jaennil/guide_helper/backend/terrain/internal/raster"
	"github.com/jaennil/guide_helper/backend/terrain/internal/tile"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
)

var (
	ErrTileNotVisible = errors.New("tile is not visible")
	ErrLayerMissing   = errors.New("tile has no such layer")
	ErrNoElevation    = errors.New("no elevation source configured")
	ErrStopped        = errors.New("terrain loop is not running")
)

type TerrainConfig struct {
	FrameInterval   time.Duration
	PlanetRadius    float64
	MaxLevel        int
	MaxQueuedLoads  int
	TextureCapacity int
	Observer        tile.Observer
}

// VisibleTile describes a tile currently drawn by the terrain.
type VisibleTile struct {
	Key    quadtree.Key
	Bounds quadtree.Box
	Layers []tile.Layer
}

type Stats struct {
	Frames         uint64
	Nodes          int
	QueuedLoads    int
	LoadsRequested int
	LoadsFinished  int
	LoadsCanceled  int
	Textures       int
}

// Snapshot is an immutable view of the terrain published after each frame.
type Snapshot struct {
	Observer tile.Observer
	Tiles    []VisibleTile
	Stats    Stats
}

type textureRequest struct {
	key   quadtree.Key
	layer tile.Layer
	reply chan textureReply
}

type textureReply struct {
	data []byte
	err  error
}

// loadStats counts loader events. It is only touched by the frame loop.
type loadStats struct {
	requested, loaded, canceled int
}

func (s *loadStats) TileLoadRequested() { s.requested++ }
func (s *loadStats) TileLoaded()        { s.loaded++ }
func (s *loadStats) TileLoadCanceled()  { s.canceled++ }

// TerrainUseCase drives tile loading from a single goroutine and serves the
// results to concurrent readers.
type TerrainUseCase struct {
	cfg       TerrainConfig
	async     *tile.ConcurrentAsyncLoader
	loader    *tile.QuadTreeLoader
	predicate *tile.PlanetSubdivisionPredicate
	textures  *tile.TextureCache[[]byte]
	altitude  *tile.AltitudeProvider
	logger    logger.Logger

	// Owned by the frame loop.
	visible map[quadtree.Key]*tile.Images
	stats   loadStats
	frames  uint64

	observers chan tile.Observer
	requests  chan textureRequest
	done      chan struct{}
	running   atomic.Bool

	snapshot atomic.Pointer[Snapshot]
}

// NewTerrainUseCase wires a terrain around async. altitude may be nil when no
// elevation source is configured.
func NewTerrainUseCase(cfg TerrainConfig, async *tile.ConcurrentAsyncLoader, altitude *tile.AltitudeProvider, l logger.Logger) *TerrainUseCase {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 50 * time.Millisecond
	}
	if cfg.TextureCapacity <= 0 {
		cfg.TextureCapacity = 256
	}

	predicate := &tile.PlanetSubdivisionPredicate{
		Observer:     cfg.Observer,
		PlanetRadius: cfg.PlanetRadius,
		MaxLevel:     cfg.MaxLevel,
	}

	uc := &TerrainUseCase{
		cfg:       cfg,
		async:     async,
		loader:    tile.NewQuadTreeLoader(async, predicate, cfg.MaxQueuedLoads, l),
		predicate: predicate,
		altitude:  altitude,
		logger:    l,
		visible:   make(map[quadtree.Key]*tile.Images),
		observers: make(chan tile.Observer, 1),
		requests:  make(chan textureRequest),
		done:      make(chan struct{}),
	}
	uc.textures = tile.NewTextureCache(cfg.TextureCapacity, func(layer tile.Layer, _ []byte) {
		l.Debug("texture evicted", "layer", layer)
	})
	uc.loader.AddListener(&uc.stats)
	uc.publish()

	return uc
}

// Run executes frames until ctx is canceled, then cancels outstanding loads
// and waits for them.
func (uc *TerrainUseCase) Run(ctx context.Context) {
	uc.running.Store(true)
	defer close(uc.done)

	ticker := time.NewTicker(uc.cfg.FrameInterval)
	defer ticker.Stop()

	uc.logger.Info("terrain loop started", "frame_interval", uc.cfg.FrameInterval, "max_level", uc.cfg.MaxLevel)

	for {
		select {
		case <-ctx.Done():
			uc.running.Store(false)
			uc.loader.Close()
			uc.async.Close()
			uc.logger.Info("terrain loop stopped", "frames", uc.frames)
			return
		case observer := <-uc.observers:
			uc.predicate.Observer = observer
		case req := <-uc.requests:
			data, err := uc.texture(req.key, req.layer)
			req.reply <- textureReply{data: data, err: err}
		case <-ticker.C:
			uc.Frame()
		}
	}
}

// Frame advances loading by one step. It must only be called from the
// goroutine running the terrain.
func (uc *TerrainUseCase) Frame() {
	added, removed := uc.loader.Update()

	for _, key := range removed {
		delete(uc.visible, key)
	}
	for _, t := range added {
		uc.visible[t.Key] = t.Images
		uc.prepareTextures(t)
	}

	uc.frames++
	uc.publish()

	if len(added) > 0 || len(removed) > 0 {
		uc.logger.Debug("visible tiles changed", "added", len(added), "removed", len(removed), "visible", len(uc.visible))
	}
}

func (uc *TerrainUseCase) prepareTextures(t tile.VisibleTile) {
	for _, layer := range tile.Layers() {
		img, ok := t.Images.Layer(layer)
		if !ok || img.Image == nil {
			continue
		}
		if _, err := uc.textures.GetOrCreateTexture(layer, img.Image, encodeTexture); err != nil {
			uc.logger.Warn("failed to create texture", "tile", t.Key, "layer", layer, "error", err)
		}
	}
}

func encodeTexture(img *raster.Image) ([]byte, error) {
	return img.EncodePNG()
}

func (uc *TerrainUseCase) texture(key quadtree.Key, layer tile.Layer) ([]byte, error) {
	images, ok := uc.visible[key]
	if !ok {
		return nil, ErrTileNotVisible
	}
	img, ok := images.Layer(layer)
	if !ok || img.Image == nil {
		return nil, ErrLayerMissing
	}
	return uc.textures.GetOrCreateTexture(layer, img.Image, encodeTexture)
}

func (uc *TerrainUseCase) publish() {
	tiles := make([]VisibleTile, 0, len(uc.visible))
	for key, images := range uc.visible {
		var layers []tile.Layer
		for _, layer := range tile.Layers() {
			if img, ok := images.Layer(layer); ok && img.Image != nil {
				layers = append(layers, layer)
			}
		}
		tiles = append(tiles, VisibleTile{Key: key, Bounds: quadtree.KeyLonLatBounds(key), Layers: layers})
	}
	slices.SortFunc(tiles, func(a, b VisibleTile) int {
		return quadtree.Compare(a.Key, b.Key)
	})

	textures := 0
	for _, layer := range tile.Layers() {
		textures += uc.textures.Len(layer)
	}

	uc.snapshot.Store(&Snapshot{
		Observer: uc.predicate.Observer,
		Tiles:    tiles,
		Stats: Stats{
			Frames:         uc.frames,
			Nodes:          uc.loader.Globe().Len(),
			QueuedLoads:    uc.loader.QueuedLoads(),
			LoadsRequested: uc.stats.requested,
			LoadsFinished:  uc.stats.loaded,
			LoadsCanceled:  uc.stats.canceled,
			Textures:       textures,
		},
	})
}

// Snapshot returns the state published by the latest frame.
func (uc *TerrainUseCase) Snapshot() *Snapshot {
	return uc.snapshot.Load()
}

// SetObserver moves the viewpoint. The change applies from the next frame.
func (uc *TerrainUseCase) SetObserver(ctx context.Context, observer tile.Observer) error {
	if !uc.running.Load() {
		return ErrStopped
	}

	// Only the latest position matters, so a pending update is replaced.
	select {
	case <-uc.observers:
	default:
	}

	select {
	case uc.observers <- observer:
		return nil
	case <-uc.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Texture returns the PNG encoded layer of a visible tile.
func (uc *TerrainUseCase) Texture(ctx context.Context, key quadtree.Key, layer tile.Layer) ([]byte, error) {
	if !uc.running.Load() {
		return nil, ErrStopped
	}

	req := textureRequest{key: key, layer: layer, reply: make(chan textureReply, 1)}
	select {
	case uc.requests <- req:
	case <-uc.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case reply := <-req.reply:
		return reply.data, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Altitude returns the terrain elevation in meters at a point given in
// degrees.
func (uc *TerrainUseCase) Altitude(ctx context.Context, latDeg, lonDeg float64) (float64, error) {
	if uc.altitude == nil {
		return 0, ErrNoElevation
	}

	altitude, err := uc.altitude.Altitude(ctx, degToRad(latDeg), degToRad(lonDeg))
	if err != nil {
		return 0, fmt.Errorf("altitude at %.5f,%.5f: %w", latDeg, lonDeg, err)
	}
	return altitude, nil
}

func degToRad(v float64) float64 {
	return v * math.Pi / 180
}
