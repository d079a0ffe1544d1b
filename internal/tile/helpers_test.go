package tile

import (
	"context"
	"image"
	"sync"

	"github.com/jaennil/guide_helper/backend/terrain/internal/elevation"
	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
	"github.com/jaennil/guide_helper/backend/terrain/internal/raster"
)

// fakeSource serves images from a map and records every request.
type fakeSource struct {
	mu       sync.Mutex
	images   map[quadtree.Key]*raster.Image
	calls    []quadtree.Key
	maxLevel int
	err      error
}

func newFakeSource(maxLevel int) *fakeSource {
	return &fakeSource{images: make(map[quadtree.Key]*raster.Image), maxLevel: maxLevel}
}

func (s *fakeSource) put(key quadtree.Key, img *raster.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[key] = img
}

func (s *fakeSource) CreateImage(_ context.Context, key quadtree.Key, canceled CancelSupplier) (*raster.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, key)
	if canceled() {
		return nil, ErrCanceled
	}
	if s.err != nil {
		return nil, s.err
	}
	if img, ok := s.images[key]; ok {
		return img, nil
	}
	return nil, ErrNoData
}

func (s *fakeSource) HasAnyChildren(key quadtree.Key) bool {
	return key.Level < s.maxLevel
}

func (s *fakeSource) HighestAvailableLevel(key quadtree.Key) (quadtree.Key, bool) {
	if key.Level > s.maxLevel {
		return quadtree.CreateAncestorKey(key, s.maxLevel), true
	}
	return key, true
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newHeightTile(size int, r elevation.Rerange, value uint16) *raster.Image {
	g := image.NewGray16(image.Rect(0, 0, size, size))
	for i := 0; i < len(g.Pix); i += 2 {
		g.Pix[i] = uint8(value >> 8)
		g.Pix[i+1] = uint8(value)
	}
	img := raster.New(g)
	elevation.SetRerange(img, r)
	return img
}

// manualScheduler holds tasks until run is called.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []func()
}

func (s *manualScheduler) Go(task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

func (s *manualScheduler) run() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	for _, task := range tasks {
		task()
	}
}

type loaderFunc func(ctx context.Context, key quadtree.Key, canceled CancelSupplier) (*Images, error)

func (f loaderFunc) Load(ctx context.Context, key quadtree.Key, canceled CancelSupplier) (*Images, error) {
	return f(ctx, key, canceled)
}

type countingListener struct {
	requested, loaded, canceled int
}

func (l *countingListener) TileLoadRequested() { l.requested++ }
func (l *countingListener) TileLoaded()        { l.loaded++ }
func (l *countingListener) TileLoadCanceled()  { l.canceled++ }
