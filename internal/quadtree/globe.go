package quadtree

import "math"

// Globe covers the whole planet with two root trees, one per hemisphere of
// longitude, so that level 0 tiles are square in lon/lat.
type Globe[T any] struct {
	Left  *Tree[T]
	Right *Tree[T]
}

var (
	LeftRootKey  = Key{Level: 0, X: 0, Y: 0}
	RightRootKey = Key{Level: 0, X: 1, Y: 0}
)

func NewGlobe[T any](create TileCreator[T]) *Globe[T] {
	return &Globe[T]{
		Left:  New(create, LeftRootKey, KeyLonLatBounds(LeftRootKey)),
		Right: New(create, RightRootKey, KeyLonLatBounds(RightRootKey)),
	}
}

func (g *Globe[T]) Trees() [2]*Tree[T] {
	return [2]*Tree[T]{g.Left, g.Right}
}

// TreeForKey returns the tree that key belongs to.
func (g *Globe[T]) TreeForKey(key Key) (*Tree[T], bool) {
	switch CreateAncestorKey(key, 0) {
	case LeftRootKey:
		return g.Left, true
	case RightRootKey:
		return g.Right, true
	}
	return nil, false
}

// Intersect searches the left tree first, then the right one.
func (g *Globe[T]) Intersect(p Vec2, predicate func(*Tree[T], NodeID) bool) (*Tree[T], NodeID, bool) {
	for _, tree := range g.Trees() {
		id, ok := tree.Intersect(tree.Root(), p, func(id NodeID) bool { return predicate(tree, id) })
		if ok {
			return tree, id, true
		}
	}
	return nil, InvalidNode, false
}

// Len returns the number of live nodes in both trees.
func (g *Globe[T]) Len() int {
	return g.Left.Len() + g.Right.Len()
}

// WrapLongitude maps lon into [-pi, pi).
func WrapLongitude(lon float64) float64 {
	lon = math.Mod(lon+math.Pi, 2*math.Pi)
	if lon < 0 {
		lon += 2 * math.Pi
	}
	return lon - math.Pi
}
