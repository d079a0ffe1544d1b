package elevation

import (
	"image"
	"math"

	"github.com/jaennil/guide_helper/backend/terrain/internal/raster"
)

// HeightMapSampler samples elevations from a height image covering a
// lat/lon rectangle. Row 0 of the image is the northern edge.
type HeightMapSampler struct {
	img     *image.Gray16
	rerange Rerange

	minLat, maxLat float64
	minLon, maxLon float64
}

func NewHeightMapSampler(img *raster.Image, minLat, minLon, maxLat, maxLon float64) (*HeightMapSampler, error) {
	r, err := RequireRerange(img)
	if err != nil {
		return nil, err
	}
	return &HeightMapSampler{
		img:     img.Gray16(),
		rerange: r,
		minLat:  minLat,
		maxLat:  maxLat,
		minLon:  minLon,
		maxLon:  maxLon,
	}, nil
}

// Sample returns the bilinearly interpolated elevation at lat, lon in
// radians. Points outside the rectangle are clamped to its edge.
func (s *HeightMapSampler) Sample(lat, lon float64) float64 {
	rect := s.img.Bounds()
	w, h := rect.Dx(), rect.Dy()

	u := (lon - s.minLon) / (s.maxLon - s.minLon)
	v := (s.maxLat - lat) / (s.maxLat - s.minLat)
	u = math.Min(math.Max(u, 0), 1) * float64(w-1)
	v = math.Min(math.Max(v, 0), 1) * float64(h-1)

	x0, y0 := int(math.Floor(u)), int(math.Floor(v))
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := u-float64(x0), v-float64(y0)

	at := func(x, y int) float64 {
		return float64(s.img.Gray16At(rect.Min.X+x, rect.Min.Y+y).Y)
	}

	top := at(x0, y0)*(1-fx) + at(x1, y0)*fx
	bottom := at(x0, y1)*(1-fx) + at(x1, y1)*fx
	return s.rerange.ElevationForColor(top*(1-fy) + bottom*fy)
}
