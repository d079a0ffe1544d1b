// Package elevation converts between physical elevation and the integer
// pixel values stored in height map tiles.
package elevation

import (
	"errors"
	"math"
)

var ErrNoRerange = errors.New("image has no elevation rerange")

// Rerange is the affine map from a pixel value to an elevation in meters:
// elevation = value*Scale + Offset.
type Rerange struct {
	Scale  float64
	Offset float64
}

// DefaultEarthRerange maps 16 bit pixel values so that 32767 is sea level.
var DefaultEarthRerange = Rerange{Scale: 1, Offset: -32767}

// RerangeFromUInt16WithBounds returns a rerange sending min to 0 and max to
// 65535.
func RerangeFromUInt16WithBounds(min, max float64) Rerange {
	return Rerange{
		Scale:  (max - min) / math.MaxUint16,
		Offset: min,
	}
}

func (r Rerange) ElevationForColor(value float64) float64 {
	return value*r.Scale + r.Offset
}

// ColorForElevation is the rounded inverse of ElevationForColor, clamped to
// the 16 bit range.
func (r Rerange) ColorForElevation(elevation float64) uint16 {
	if r.Scale == 0 {
		return 0
	}
	v := math.Round((elevation - r.Offset) / r.Scale)
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}

// Bounds is an elevation interval in meters. The zero value is the point 0;
// use EmptyBounds for an interval to grow with Expand.
type Bounds struct {
	Min float64
	Max float64
}

func EmptyBounds() Bounds {
	return Bounds{Min: math.Inf(1), Max: math.Inf(-1)}
}

func (b Bounds) IsEmpty() bool {
	return b.Min > b.Max
}

func (b Bounds) Expand(elevation float64) Bounds {
	return Bounds{Min: math.Min(b.Min, elevation), Max: math.Max(b.Max, elevation)}
}

func (b Bounds) Merge(other Bounds) Bounds {
	if other.IsEmpty() {
		return b
	}
	return b.Expand(other.Min).Expand(other.Max)
}
