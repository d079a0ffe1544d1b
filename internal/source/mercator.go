package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/jaennil/guide_helper/backend/terrain/internal/elevation"
	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
	"github.com/jaennil/guide_helper/backend/terrain/internal/raster"
	"github.com/jaennil/guide_helper/backend/terrain/internal/tile"
)

// Projection is the tiling scheme of an upstream tile server.
type Projection string

const (
	// ProjectionPlateCarree servers use the globe's two-root lon/lat tiling.
	ProjectionPlateCarree Projection = "plate-carree"
	// ProjectionSphericalMercator servers use the single-root web mercator
	// tiling of OSM, Mapbox and Bing.
	ProjectionSphericalMercator Projection = "spherical-mercator"
)

const (
	mercatorTileSize  = 256
	compositeTileSize = 256
)

var (
	mercatorMaxLatitude = 85.05112878 * math.Pi / 180

	ErrInconsistentRerange = errors.New("source tiles have different elevation reranges")
)

// SphericalMercatorSource serves globe tiles from a web mercator server. A
// globe tile at level L spans 2^(L+1) columns like a mercator tile at L+1,
// so each globe tile is composited from the mercator tiles at L+1 that
// cover it.
type SphericalMercatorSource struct {
	LevelRange

	mercator *XYZSource
}

var _ tile.Source = (*SphericalMercatorSource)(nil)

func NewSphericalMercatorSource(mercator *XYZSource) (*SphericalMercatorSource, error) {
	if mercator.Max < 1 {
		return nil, fmt.Errorf("spherical mercator source needs max level >= 1, got %d", mercator.Max)
	}
	return &SphericalMercatorSource{
		LevelRange: LevelRange{Min: max(0, mercator.Min-1), Max: mercator.Max - 1},
		mercator:   mercator,
	}, nil
}

// MercatorTiles returns the inclusive range of mercator tile indices at
// level key.Level+1 that cover key.
func MercatorTiles(key quadtree.Key) (level int, minTile, maxTile image.Point) {
	level = key.Level + 1
	b := quadtree.KeyLonLatBounds(key)

	// Shrink by half a pixel so tiles that only touch an edge are skipped.
	lo := latLonToMercatorPixel(b.Max.Y, b.Min.X, level)
	hi := latLonToMercatorPixel(b.Min.Y, b.Max.X, level)
	minTile = mercatorPixelToTile(lo.X+0.5, lo.Y+0.5, level)
	maxTile = mercatorPixelToTile(hi.X-0.5, hi.Y-0.5, level)
	return level, minTile, maxTile
}

func (s *SphericalMercatorSource) CreateImage(ctx context.Context, key quadtree.Key, canceled tile.CancelSupplier) (*raster.Image, error) {
	if canceled() {
		return nil, tile.ErrCanceled
	}
	if !s.Contains(key.Level) {
		return nil, tile.ErrNoData
	}

	level, minTile, maxTile := MercatorTiles(key)

	tiles := make(map[image.Point]*raster.Image)
	var (
		rerange    elevation.Rerange
		hasRerange bool
		bounds     = elevation.EmptyBounds()
	)
	for y := minTile.Y; y <= maxTile.Y; y++ {
		for x := minTile.X; x <= maxTile.X; x++ {
			img, err := s.mercator.CreateImage(ctx, quadtree.NewKey(level, x, y), canceled)
			if err != nil {
				return nil, err
			}

			if r, ok := elevation.GetRerange(img); ok {
				if hasRerange && r != rerange {
					return nil, fmt.Errorf("tile %v: %w", key, ErrInconsistentRerange)
				}
				rerange, hasRerange = r, true
			}
			if b, ok := elevation.GetBounds(img); ok {
				bounds = bounds.Merge(b)
			}

			tiles[image.Pt(x, y)] = img

			if canceled() {
				return nil, tile.ErrCanceled
			}
		}
	}

	composite := compositeMercatorTiles(key, level, tiles)
	if hasRerange {
		elevation.SetRerange(composite, rerange)
	}
	if !bounds.IsEmpty() {
		elevation.SetBounds(composite, bounds)
	}
	return composite, nil
}

// compositeMercatorTiles resamples tiles onto the lon/lat grid of key.
// Height tiles stay 16 bit grayscale; anything else becomes NRGBA.
func compositeMercatorTiles(key quadtree.Key, level int, tiles map[image.Point]*raster.Image) *raster.Image {
	b := quadtree.KeyLonLatBounds(key)
	size := b.Size()
	rect := image.Rect(0, 0, compositeTileSize, compositeTileSize)

	var (
		gray *image.Gray16
		rgba *image.NRGBA
	)
	for _, t := range tiles {
		if _, ok := t.Image.(*image.Gray16); ok {
			gray = image.NewGray16(rect)
		} else {
			rgba = image.NewNRGBA(rect)
		}
		break
	}

	for row := 0; row < compositeTileSize; row++ {
		lat := b.Max.Y - size.Y*(float64(row)+0.5)/compositeTileSize
		for col := 0; col < compositeTileSize; col++ {
			lon := b.Min.X + size.X*(float64(col)+0.5)/compositeTileSize

			p := latLonToMercatorPixel(lat, lon, level)
			idx := mercatorPixelToTile(p.X, p.Y, level)
			src, ok := tiles[idx]
			if !ok {
				continue
			}

			u := p.X - float64(idx.X*mercatorTileSize)
			v := p.Y - float64(idx.Y*mercatorTileSize)
			c := sampleBilinear(src, u/mercatorTileSize, v/mercatorTileSize)

			if gray != nil {
				gray.SetGray16(col, row, color.Gray16{Y: uint16(math.Round(c[0]))})
			} else {
				rgba.Set(col, row, color.RGBA64{
					R: uint16(math.Round(c[0])),
					G: uint16(math.Round(c[1])),
					B: uint16(math.Round(c[2])),
					A: uint16(math.Round(c[3])),
				})
			}
		}
	}

	if gray != nil {
		return raster.New(gray)
	}
	return raster.New(rgba)
}

// sampleBilinear samples img at normalized coordinates u, v in [0, 1] with
// v growing downward. Channels are premultiplied 16 bit values.
func sampleBilinear(img *raster.Image, u, v float64) [4]float64 {
	rect := img.Bounds()
	w, h := rect.Dx(), rect.Dy()

	fx := math.Min(math.Max(u*float64(w)-0.5, 0), float64(w-1))
	fy := math.Min(math.Max(v*float64(h)-0.5, 0), float64(h-1))
	x0, y0 := int(fx), int(fy)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	tx, ty := fx-float64(x0), fy-float64(y0)

	at := func(x, y int) [4]float64 {
		r, g, b, a := img.At(rect.Min.X+x, rect.Min.Y+y).RGBA()
		return [4]float64{float64(r), float64(g), float64(b), float64(a)}
	}

	c00, c10, c01, c11 := at(x0, y0), at(x1, y0), at(x0, y1), at(x1, y1)
	var out [4]float64
	for i := range out {
		top := c00[i]*(1-tx) + c10[i]*tx
		bottom := c01[i]*(1-tx) + c11[i]*tx
		out[i] = top*(1-ty) + bottom*ty
	}
	return out
}

// latLonToMercatorPixel converts radians to web mercator pixel coordinates
// at level, clamped to the map.
func latLonToMercatorPixel(lat, lon float64, level int) quadtree.Vec2 {
	lat = math.Min(math.Max(lat, -mercatorMaxLatitude), mercatorMaxLatitude)

	x := (lon + math.Pi) / (2 * math.Pi)
	sinLat := math.Sin(lat)
	y := 0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)

	mapSize := float64(int(mercatorTileSize) << level)
	return quadtree.Vec2{
		X: math.Min(math.Max(x*mapSize, 0), mapSize),
		Y: math.Min(math.Max(y*mapSize, 0), mapSize),
	}
}

func mercatorPixelToTile(px, py float64, level int) image.Point {
	last := (1 << level) - 1
	clamp := func(v float64) int {
		return min(max(int(math.Floor(v/mercatorTileSize)), 0), last)
	}
	return image.Pt(clamp(px), clamp(py))
}
