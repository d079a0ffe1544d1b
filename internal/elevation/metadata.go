package elevation

import (
	"image"
	"math"

	"github.com/jaennil/guide_helper/backend/terrain/internal/raster"
)

const (
	rerangeKey = "elevation.rerange"
	boundsKey  = "elevation.bounds"
)

func SetRerange(img *raster.Image, r Rerange) {
	img.SetValue(rerangeKey, r)
}

func GetRerange(img *raster.Image) (Rerange, bool) {
	v, ok := img.Value(rerangeKey)
	if !ok {
		return Rerange{}, false
	}
	r, ok := v.(Rerange)
	return r, ok
}

func RequireRerange(img *raster.Image) (Rerange, error) {
	r, ok := GetRerange(img)
	if !ok {
		return Rerange{}, ErrNoRerange
	}
	return r, nil
}

func SetBounds(img *raster.Image, b Bounds) {
	img.SetValue(boundsKey, b)
}

func GetBounds(img *raster.Image) (Bounds, bool) {
	v, ok := img.Value(boundsKey)
	if !ok {
		return Bounds{}, false
	}
	b, ok := v.(Bounds)
	return b, ok
}

// ComputeBounds returns the elevation range covered by the pixels of a height
// image.
func ComputeBounds(img *raster.Image, r Rerange) Bounds {
	g := img.Gray16()
	lo, hi := uint16(math.MaxUint16), uint16(0)
	rect := g.Bounds()
	if rect.Empty() {
		return EmptyBounds()
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			v := g.Gray16At(x, y).Y
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	return Bounds{
		Min: r.ElevationForColor(float64(lo)),
		Max: r.ElevationForColor(float64(hi)),
	}
}

// NewHeightImage returns a height image filled with the pixel value for
// elevation, annotated with r and flat bounds.
func NewHeightImage(width, height int, r Rerange, elevation float64) *raster.Image {
	g := image.NewGray16(image.Rect(0, 0, width, height))
	v := r.ColorForElevation(elevation)
	for i := 0; i < len(g.Pix); i += 2 {
		g.Pix[i] = uint8(v >> 8)
		g.Pix[i+1] = uint8(v)
	}

	img := raster.New(g)
	SetRerange(img, r)
	e := r.ElevationForColor(float64(v))
	SetBounds(img, Bounds{Min: e, Max: e})
	return img
}
