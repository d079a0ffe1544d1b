package quadtree

import "math"

// KeyLonLatBounds returns the geographic extent of key in radians, with
// longitude on X and latitude on Y. Level 0 has two roots: x=0 covers the
// western hemisphere and x=1 the eastern one.
func KeyLonLatBounds(key Key) Box {
	yMax := float64(int(1) << key.Level)
	return Box{
		Min: Vec2{
			X: -math.Pi + float64(key.X)/yMax*math.Pi,
			Y: math.Pi/2 - float64(key.Y+1)/yMax*math.Pi,
		},
		Max: Vec2{
			X: -math.Pi + float64(key.X+1)/yMax*math.Pi,
			Y: math.Pi/2 - float64(key.Y)/yMax*math.Pi,
		},
	}
}

// KeyLatLonBounds is KeyLonLatBounds with the axes swapped.
func KeyLatLonBounds(key Key) Box {
	return KeyLonLatBounds(key).Swap()
}

// KeyAtLevelIntersectingLonLatPoint returns the key at level whose bounds
// contain point (lon, lat in radians). Cells are half-open toward the east
// and the south; points on the east or south edge of the globe land in the
// last cell.
func KeyAtLevelIntersectingLonLatPoint(level int, point Vec2) Key {
	yCount := int(1) << level
	yMax := float64(yCount)

	x := int(math.Floor((point.X + math.Pi) * yMax / math.Pi))
	y := int(math.Floor((math.Pi/2 - point.Y) * yMax / math.Pi))

	return Key{
		Level: level,
		X:     clampIndex(x, 2*yCount),
		Y:     clampIndex(y, yCount),
	}
}

func clampIndex(v, count int) int {
	if v < 0 {
		return 0
	}
	if v >= count {
		return count - 1
	}
	return v
}
