package tile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
	"github.com/jaennil/guide_helper/backend/terrain/internal/raster"
)

var (
	// ErrNoData means a source has no image for a key.
	ErrNoData   = errors.New("no tile data")
	ErrCanceled = errors.New("tile load canceled")
)

// CancelSupplier reports whether the work it was handed to should stop.
type CancelSupplier func() bool

// Layer identifies one raster layer of a tile.
type Layer int

const (
	LayerHeight Layer = iota
	LayerNormal
	LayerLandMask
	LayerAlbedo
	LayerAttribute

	layerCount
)

var layerNames = [layerCount]string{"height", "normal", "landmask", "albedo", "attribute"}

func (l Layer) String() string {
	if l < 0 || l >= layerCount {
		return fmt.Sprintf("layer(%d)", int(l))
	}
	return layerNames[l]
}

func ParseLayer(s string) (Layer, error) {
	for i, name := range layerNames {
		if name == s {
			return Layer(i), nil
		}
	}
	return 0, fmt.Errorf("unknown layer %q", s)
}

// Layers returns every layer in order.
func Layers() []Layer {
	layers := make([]Layer, layerCount)
	for i := range layers {
		layers[i] = Layer(i)
	}
	return layers
}

// TileImage is an image together with the key it was produced for, which is
// an ancestor of the requested key when finer data was missing.
type TileImage struct {
	Image *raster.Image
	Key   quadtree.Key
}

// Images holds the decoded layers of one tile. It is filled by an
// ImagesLoader and not modified once returned.
type Images struct {
	Key    quadtree.Key
	layers [layerCount]TileImage
}

func NewImages(key quadtree.Key) *Images {
	return &Images{Key: key}
}

func (i *Images) Set(layer Layer, img TileImage) {
	i.layers[layer] = img
}

func (i *Images) Layer(layer Layer) (TileImage, bool) {
	if layer < 0 || layer >= layerCount {
		return TileImage{}, false
	}
	img := i.layers[layer]
	return img, img.Image != nil
}

// Source provides raw images for tile keys. Implementations are called from
// worker goroutines and must poll canceled during long work.
type Source interface {
	// CreateImage returns ErrNoData when the source has nothing for key.
	CreateImage(ctx context.Context, key quadtree.Key, canceled CancelSupplier) (*raster.Image, error)
	HasAnyChildren(key quadtree.Key) bool
	// HighestAvailableLevel returns the deepest ancestor-or-self of key for
	// which data exists.
	HighestAvailableLevel(key quadtree.Key) (quadtree.Key, bool)
}

// ImagesLoader builds all layers of a tile. It may be called concurrently.
type ImagesLoader interface {
	Load(ctx context.Context, key quadtree.Key, canceled CancelSupplier) (*Images, error)
}
