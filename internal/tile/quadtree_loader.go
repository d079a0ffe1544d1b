package tile

import (
	"slices"

	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/metrics"
)

const DefaultMaxQueuedLoads = 32

// AsyncTile is the payload of a node in the loader's globe.
type AsyncTile struct {
	slot Slot
	// progress is nil until a load has been started.
	progress *ProgressCallback
}

func newAsyncTile(quadtree.Key, quadtree.Box) *AsyncTile {
	return &AsyncTile{}
}

// Images returns nil while the tile has no applied data.
func (t *AsyncTile) Images() *Images {
	return t.slot.Images()
}

// State folds a failed or canceled load back into NotLoaded so the tile can
// be requested again.
func (t *AsyncTile) State() LoadState {
	if t.progress == nil {
		return NotLoaded
	}
	switch s := t.progress.State(); s {
	case Loading, Loaded:
		return s
	}
	return NotLoaded
}

func (t *AsyncTile) requestCancelLoad() {
	if t.progress != nil {
		t.progress.RequestCancel()
	}
}

// SubdivisionPredicate decides whether a tile lacks detail and should be
// replaced by its children.
type SubdivisionPredicate interface {
	ShouldSubdivide(bounds quadtree.Box, key quadtree.Key) bool
}

type SubdivisionPredicateFunc func(bounds quadtree.Box, key quadtree.Key) bool

func (f SubdivisionPredicateFunc) ShouldSubdivide(bounds quadtree.Box, key quadtree.Key) bool {
	return f(bounds, key)
}

// LoaderListener observes the lifecycle of requests made by a QuadTreeLoader.
type LoaderListener interface {
	TileLoadRequested()
	TileLoaded()
	TileLoadCanceled()
}

// VisibleTile is a leaf of the loaded tree that has data.
type VisibleTile struct {
	Key    quadtree.Key
	Bounds quadtree.Box
	Images *Images
}

// QuadTreeLoader grows and shrinks a globe of tiles so that each visible
// tile satisfies a SubdivisionPredicate. A tile's children are only
// requested once the tile itself is loaded, so detail arrives one level at a
// time. QuadTreeLoader is not safe for concurrent use.
type QuadTreeLoader struct {
	async     AsyncLoader
	predicate SubdivisionPredicate
	globe     *quadtree.Globe[*AsyncTile]
	logger    logger.Logger

	listeners []LoaderListener
	maxQueued int
	queue     []*ProgressCallback
	visible   map[quadtree.Key]struct{}
}

func NewQuadTreeLoader(async AsyncLoader, predicate SubdivisionPredicate, maxQueued int, l logger.Logger) *QuadTreeLoader {
	if maxQueued <= 0 {
		maxQueued = DefaultMaxQueuedLoads
	}
	return &QuadTreeLoader{
		async:     async,
		predicate: predicate,
		globe:     quadtree.NewGlobe(newAsyncTile),
		logger:    l,
		maxQueued: maxQueued,
		visible:   make(map[quadtree.Key]struct{}),
	}
}

func (l *QuadTreeLoader) AddListener(listener LoaderListener) {
	l.listeners = append(l.listeners, listener)
}

func (l *QuadTreeLoader) Globe() *quadtree.Globe[*AsyncTile] {
	return l.globe
}

// QueuedLoads returns the number of requests not yet retired.
func (l *QuadTreeLoader) QueuedLoads() int {
	return len(l.queue)
}

// Update advances loading by one step and reports the tiles that became
// visible and the keys of tiles that stopped being visible.
func (l *QuadTreeLoader) Update() ([]VisibleTile, []quadtree.Key) {
	for _, tree := range l.globe.Trees() {
		l.traverseToLoadAndUnload(tree, tree.Root(), false)
	}

	l.async.Update()
	l.retireFinishedRequests()

	tiles := make(map[quadtree.Key]struct{}, len(l.visible))
	var added []VisibleTile
	for _, tree := range l.globe.Trees() {
		l.traverseToCollectVisibleTiles(tree, tree.Root(), tiles, &added)
	}

	var removed []quadtree.Key
	for key := range l.visible {
		if _, ok := tiles[key]; !ok {
			removed = append(removed, key)
		}
	}
	slices.SortFunc(removed, quadtree.Compare)

	l.visible = tiles

	metrics.QuadTreeNodes.Set(float64(l.globe.Len()))
	metrics.VisibleTiles.Set(float64(len(tiles)))

	return added, removed
}

func (l *QuadTreeLoader) traverseToLoadAndUnload(tree *quadtree.Tree[*AsyncTile], id quadtree.NodeID, parentIsSufficient bool) {
	tile := tree.Data(id)
	key := tree.Key(id)
	sufficient := !l.predicate.ShouldSubdivide(tree.Bounds(id), key)
	state := tile.State()

	if !parentIsSufficient {
		if state == NotLoaded {
			l.loadTile(key, tile)
		}
	} else if state != Loaded {
		tile.requestCancelLoad()
	}

	if state == Loaded {
		if !sufficient {
			if !tree.HasChildren(id) {
				tree.Subdivide(id)
			}
		} else if tree.HasChildren(id) {
			tree.Merge(id, func(child quadtree.NodeID) {
				tree.Data(child).requestCancelLoad()
			})
		}
	}

	for _, child := range tree.Children(id) {
		if child != quadtree.InvalidNode {
			l.traverseToLoadAndUnload(tree, child, sufficient)
		}
	}
}

func (l *QuadTreeLoader) loadTile(key quadtree.Key, tile *AsyncTile) {
	if len(l.queue) >= l.maxQueued {
		return
	}

	tile.progress = NewProgressCallback()
	l.async.Load(key, &tile.slot, tile.progress)
	l.queue = append(l.queue, tile.progress)

	for _, listener := range l.listeners {
		listener.TileLoadRequested()
	}
}

func (l *QuadTreeLoader) retireFinishedRequests() {
	remaining := l.queue[:0]
	for _, progress := range l.queue {
		switch progress.State() {
		case Loading:
			remaining = append(remaining, progress)
		case Loaded:
			for _, listener := range l.listeners {
				listener.TileLoaded()
			}
		default:
			for _, listener := range l.listeners {
				listener.TileLoadCanceled()
			}
		}
	}
	clear(l.queue[len(remaining):])
	l.queue = remaining
}

func (l *QuadTreeLoader) traverseToCollectVisibleTiles(tree *quadtree.Tree[*AsyncTile], id quadtree.NodeID, tiles map[quadtree.Key]struct{}, added *[]VisibleTile) {
	images := tree.Data(id).Images()
	if images == nil {
		return
	}

	if !allChildrenHaveImages(tree, id) {
		key := tree.Key(id)
		if _, ok := l.visible[key]; !ok {
			*added = append(*added, VisibleTile{Key: key, Bounds: tree.Bounds(id), Images: images})
		}
		tiles[key] = struct{}{}
		return
	}

	for _, child := range tree.Children(id) {
		l.traverseToCollectVisibleTiles(tree, child, tiles, added)
	}
}

// allChildrenHaveImages is false for a leaf.
func allChildrenHaveImages(tree *quadtree.Tree[*AsyncTile], id quadtree.NodeID) bool {
	if !tree.HasChildren(id) {
		return false
	}
	for _, child := range tree.Children(id) {
		if child == quadtree.InvalidNode || tree.Data(child).Images() == nil {
			return false
		}
	}
	return true
}

// Close drops every tile below the roots, cancels their loads and reports the
// outstanding requests as canceled.
func (l *QuadTreeLoader) Close() {
	for _, tree := range l.globe.Trees() {
		tree.Merge(tree.Root(), func(child quadtree.NodeID) {
			tree.Data(child).requestCancelLoad()
		})
		tree.Data(tree.Root()).requestCancelLoad()
	}

	for range l.queue {
		for _, listener := range l.listeners {
			listener.TileLoadCanceled()
		}
	}
	l.queue = nil
	l.logger.Info("quadtree loader closed")
}

// FindLeafTiles returns the images of every leaf with data, treating tiles at
// maxLevel as leaves. A negative maxLevel means no limit.
func FindLeafTiles(globe *quadtree.Globe[*AsyncTile], maxLevel int) map[quadtree.Key]*Images {
	result := make(map[quadtree.Key]*Images)
	for _, tree := range globe.Trees() {
		findLeafTiles(tree, tree.Root(), maxLevel, result)
	}
	return result
}

func findLeafTiles(tree *quadtree.Tree[*AsyncTile], id quadtree.NodeID, maxLevel int, result map[quadtree.Key]*Images) {
	images := tree.Data(id).Images()
	if images == nil {
		return
	}

	key := tree.Key(id)
	if (maxLevel >= 0 && key.Level >= maxLevel) || !allChildrenHaveImages(tree, id) {
		result[key] = images
		return
	}

	for _, child := range tree.Children(id) {
		findLeafTiles(tree, child, maxLevel, result)
	}
}

// FindAddedAndRemovedTiles diffs two leaf sets. A key whose images changed
// is reported as added.
func FindAddedAndRemovedTiles(previous, current map[quadtree.Key]*Images) (map[quadtree.Key]*Images, []quadtree.Key) {
	added := make(map[quadtree.Key]*Images)
	for key, images := range current {
		if prev, ok := previous[key]; !ok || prev != images {
			added[key] = images
		}
	}

	var removed []quadtree.Key
	for key := range previous {
		if _, ok := current[key]; !ok {
			removed = append(removed, key)
		}
	}
	slices.SortFunc(removed, quadtree.Compare)

	return added, removed
}
