package quadtree

import "math"

type Vec2 struct {
	X float64
	Y float64
}

func (v Vec2) Swap() Vec2 {
	return Vec2{X: v.Y, Y: v.X}
}

// Box is an axis aligned rectangle.
type Box struct {
	Min Vec2
	Max Vec2
}

func NewBox(min, max Vec2) Box {
	return Box{Min: min, Max: max}
}

func (b Box) Size() Vec2 {
	return Vec2{X: b.Max.X - b.Min.X, Y: b.Max.Y - b.Min.Y}
}

func (b Box) Center() Vec2 {
	return Vec2{X: (b.Min.X + b.Max.X) / 2, Y: (b.Min.Y + b.Max.Y) / 2}
}

// Contains is inclusive on every edge.
func (b Box) Contains(p Vec2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

func (b Box) Intersects(other Box) bool {
	return b.Max.X > other.Min.X && b.Min.X < other.Max.X &&
		b.Max.Y > other.Min.Y && b.Min.Y < other.Max.Y
}

// Swap exchanges the axes, turning a lon/lat box into a lat/lon box.
func (b Box) Swap() Box {
	return Box{Min: b.Min.Swap(), Max: b.Max.Swap()}
}

// Quadrant returns the child box i in NW, NE, SW, SE order, where north is +Y.
func (b Box) Quadrant(i int) Box {
	c := b.Center()
	switch i {
	case 0:
		return Box{Min: Vec2{b.Min.X, c.Y}, Max: Vec2{c.X, b.Max.Y}}
	case 1:
		return Box{Min: c, Max: b.Max}
	case 2:
		return Box{Min: b.Min, Max: c}
	case 3:
		return Box{Min: Vec2{c.X, b.Min.Y}, Max: Vec2{b.Max.X, c.Y}}
	}
	panic("quadtree: quadrant index out of range")
}

// Clamp returns the point of b nearest to p.
func (b Box) Clamp(p Vec2) Vec2 {
	return Vec2{
		X: math.Min(math.Max(p.X, b.Min.X), b.Max.X),
		Y: math.Min(math.Max(p.Y, b.Min.Y), b.Max.Y),
	}
}
