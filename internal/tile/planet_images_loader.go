package tile

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/jaennil/guide_helper/backend/terrain/internal/elevation"
	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
	"github.com/jaennil/guide_helper/backend/terrain/internal/raster"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
)

const (
	defaultImageSize            = 256
	defaultNormalMapFilterWidth = 5
)

type PlanetImagesLoaderConfig struct {
	// Elevation and Albedo may be nil, in which case defaults are used.
	Elevation Source
	Albedo    Source
	// LandMask is optional. Without it the mask is derived from elevation.
	LandMask  Source
	Attribute Source

	PlanetRadius         float64
	ImageCacheCapacity   int
	NormalMapFilterWidth int
}

// PlanetImagesLoader assembles the layers of a planet surface tile.
type PlanetImagesLoader struct {
	cfg    PlanetImagesLoaderConfig
	caches *ImageCaches
	logger logger.Logger

	defaultHeight   *raster.Image
	defaultNormal   *raster.Image
	defaultLandMask *raster.Image
	defaultAlbedo   *raster.Image
}

var _ ImagesLoader = (*PlanetImagesLoader)(nil)

func NewPlanetImagesLoader(cfg PlanetImagesLoaderConfig, l logger.Logger) *PlanetImagesLoader {
	if cfg.NormalMapFilterWidth <= 0 {
		cfg.NormalMapFilterWidth = defaultNormalMapFilterWidth
	}

	defaultRerange := elevation.Rerange{Scale: 1, Offset: 0}
	defaultHeight := elevation.NewHeightImage(defaultImageSize, defaultImageSize, defaultRerange, 0)

	return &PlanetImagesLoader{
		cfg:             cfg,
		caches:          NewImageCaches(cfg.ImageCacheCapacity, l),
		logger:          l,
		defaultHeight:   defaultHeight,
		defaultNormal:   elevation.NormalMapFromHeightMap(defaultHeight, defaultRerange, elevation.TexelSize{X: 1, Y: 1}, 1),
		defaultLandMask: landMaskFromHeightMap(defaultHeight, defaultRerange),
		defaultAlbedo:   newBlackImage(defaultImageSize),
	}
}

func (p *PlanetImagesLoader) Load(ctx context.Context, key quadtree.Key, canceled CancelSupplier) (*Images, error) {
	if canceled() {
		return nil, ErrCanceled
	}

	images := NewImages(key)

	height, err := p.loadHeight(ctx, key, canceled)
	if err != nil {
		return nil, fmt.Errorf("height: %w", err)
	}
	images.Set(LayerHeight, height)

	normal, err := p.loadNormal(height, canceled)
	if err != nil {
		return nil, fmt.Errorf("normal: %w", err)
	}
	images.Set(LayerNormal, normal)

	landMask, err := p.loadLandMask(ctx, height, canceled)
	if err != nil {
		return nil, fmt.Errorf("land mask: %w", err)
	}
	images.Set(LayerLandMask, landMask)

	albedo, err := p.loadOptional(ctx, LayerAlbedo, p.cfg.Albedo, key, canceled)
	if err != nil {
		return nil, fmt.Errorf("albedo: %w", err)
	}
	if albedo.Image == nil {
		albedo = TileImage{Image: p.defaultAlbedo, Key: quadtree.CreateAncestorKey(key, 0)}
	}
	images.Set(LayerAlbedo, albedo)

	attribute, err := p.loadOptional(ctx, LayerAttribute, p.cfg.Attribute, key, canceled)
	if err != nil {
		return nil, fmt.Errorf("attribute: %w", err)
	}
	if attribute.Image != nil {
		images.Set(LayerAttribute, attribute)
	}

	if canceled() {
		return nil, ErrCanceled
	}
	return images, nil
}

func (p *PlanetImagesLoader) loadHeight(ctx context.Context, key quadtree.Key, canceled CancelSupplier) (TileImage, error) {
	height, err := p.loadOptional(ctx, LayerHeight, p.cfg.Elevation, key, canceled)
	if err != nil {
		return TileImage{}, err
	}
	if height.Image == nil {
		return TileImage{Image: p.defaultHeight, Key: quadtree.CreateAncestorKey(key, 0)}, nil
	}
	if _, err := elevation.RequireRerange(height.Image); err != nil {
		return TileImage{}, fmt.Errorf("tile %v: %w", height.Key, err)
	}
	return height, nil
}

func (p *PlanetImagesLoader) loadNormal(height TileImage, canceled CancelSupplier) (TileImage, error) {
	if height.Image == p.defaultHeight {
		return TileImage{Image: p.defaultNormal, Key: height.Key}, nil
	}

	return p.caches.GetOrCreateImage(LayerNormal, height.Key, height.Key.Level, canceled, func(key quadtree.Key) (*raster.Image, error) {
		r, err := elevation.RequireRerange(height.Image)
		if err != nil {
			return nil, err
		}

		bounds := quadtree.KeyLonLatBounds(height.Key)
		size := bounds.Size()
		texel := elevation.TexelSize{
			X: size.X * p.cfg.PlanetRadius * math.Cos(bounds.Center().Y) / float64(height.Image.Width()),
			Y: size.Y * p.cfg.PlanetRadius / float64(height.Image.Height()),
		}
		return elevation.NormalMapFromHeightMap(height.Image, r, texel, p.cfg.NormalMapFilterWidth), nil
	})
}

func (p *PlanetImagesLoader) loadLandMask(ctx context.Context, height TileImage, canceled CancelSupplier) (TileImage, error) {
	img, err := p.caches.GetOrCreateImage(LayerLandMask, height.Key, 0, canceled, func(key quadtree.Key) (*raster.Image, error) {
		if p.cfg.LandMask != nil {
			return p.cfg.LandMask.CreateImage(ctx, key, canceled)
		}
		if height.Image == p.defaultHeight {
			return p.defaultLandMask, nil
		}
		r, err := elevation.RequireRerange(height.Image)
		if err != nil {
			return nil, err
		}
		return landMaskFromHeightMap(height.Image, r), nil
	})
	if err != nil {
		return TileImage{}, err
	}
	if img.Image == nil {
		img = TileImage{Image: p.defaultLandMask, Key: height.Key}
	}
	return img, nil
}

// loadOptional fetches the highest available image of source for key.
// A nil source or missing data yields an empty TileImage.
func (p *PlanetImagesLoader) loadOptional(ctx context.Context, layer Layer, source Source, key quadtree.Key, canceled CancelSupplier) (TileImage, error) {
	if source == nil {
		return TileImage{}, nil
	}
	available, ok := source.HighestAvailableLevel(key)
	if !ok {
		return TileImage{}, nil
	}

	return p.caches.GetOrCreateImage(layer, available, 0, canceled, func(k quadtree.Key) (*raster.Image, error) {
		return source.CreateImage(ctx, k, canceled)
	})
}

// Caches exposes the per-layer image caches.
func (p *PlanetImagesLoader) Caches() *ImageCaches {
	return p.caches
}

// landMaskFromHeightMap marks pixels above sea level with 255 and the rest
// with 0.
func landMaskFromHeightMap(height *raster.Image, r elevation.Rerange) *raster.Image {
	src := height.Gray16()
	rect := src.Bounds()
	sea := r.ColorForElevation(0)

	dst := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			if src.Gray16At(rect.Min.X+x, rect.Min.Y+y).Y > sea {
				dst.SetGray(x, y, color.Gray{Y: math.MaxUint8})
			}
		}
	}
	return raster.New(dst)
}

func newBlackImage(size int) *raster.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = math.MaxUint8
	}
	return raster.New(img)
}
