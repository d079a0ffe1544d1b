package elevation

import (
	"image"
	"image/color"
	"math"

	"github.com/jaennil/guide_helper/backend/terrain/internal/raster"
)

// TexelSize is the world size of one texel along x and y, in meters.
type TexelSize struct {
	X float64
	Y float64
}

// NormalMapFromHeightMap derives a tangent space normal map from a height
// image using forward differences over filterWidth texels, clamped at the
// edges. Normals are stored in RGB as n*0.5+0.5.
func NormalMapFromHeightMap(height *raster.Image, r Rerange, texel TexelSize, filterWidth int) *raster.Image {
	if filterWidth < 1 {
		filterWidth = 1
	}

	g := height.Gray16()
	rect := g.Bounds()
	w, h := rect.Dx(), rect.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	elevationAt := func(x, y int) float64 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return r.ElevationForColor(float64(g.Gray16At(rect.Min.X+x, rect.Min.Y+y).Y))
	}

	dx := float64(filterWidth) * texel.X
	dy := float64(filterWidth) * texel.Y

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			e := elevationAt(x, y)
			slopeX := (elevationAt(x+filterWidth, y) - e) / dx
			slopeY := (elevationAt(x, y+filterWidth) - e) / dy

			nx, ny, nz := -slopeX, -slopeY, 1.0
			l := math.Sqrt(nx*nx + ny*ny + nz*nz)

			out.SetNRGBA(x, y, color.NRGBA{
				R: encodeNormalComponent(nx / l),
				G: encodeNormalComponent(ny / l),
				B: encodeNormalComponent(nz / l),
				A: math.MaxUint8,
			})
		}
	}
	return raster.New(out)
}

func encodeNormalComponent(v float64) uint8 {
	return uint8(math.Round((v*0.5 + 0.5) * math.MaxUint8))
}

// DecodeNormal reads back the unit normal stored at (x, y).
func DecodeNormal(img *raster.Image, x, y int) (float64, float64, float64) {
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	decode := func(v uint8) float64 {
		return float64(v)/math.MaxUint8*2 - 1
	}
	return decode(c.R), decode(c.G), decode(c.B)
}
