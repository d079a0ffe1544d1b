package quadtree

import (
	"cmp"
	"fmt"
)

// Key addresses one node of a quadtree: a subdivision level and the x, y
// index of the node at that level. Level 0 holds the roots; each level
// doubles the index range along both axes. y grows southward.
type Key struct {
	Level int
	X     int
	Y     int
}

func NewKey(level, x, y int) Key {
	return Key{Level: level, X: x, Y: y}
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Level, k.X, k.Y)
}

// Compare orders keys by level, then x, then y.
func Compare(a, b Key) int {
	if c := cmp.Compare(a.Level, b.Level); c != 0 {
		return c
	}
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	return cmp.Compare(a.Y, b.Y)
}

// Child returns the key of child i in NW, NE, SW, SE order.
func (k Key) Child(i int) Key {
	return Key{
		Level: k.Level + 1,
		X:     k.X*2 + i%2,
		Y:     k.Y*2 + i/2,
	}
}

// Parent returns the key one level up. The parent of a root is itself.
func (k Key) Parent() Key {
	if k.Level == 0 {
		return k
	}
	return CreateAncestorKey(k, k.Level-1)
}

// IsAncestorOf reports whether k is other or one of its ancestors.
func (k Key) IsAncestorOf(other Key) bool {
	if k.Level > other.Level {
		return false
	}
	return CreateAncestorKey(other, k.Level) == k
}

// CreateAncestorKey returns the ancestor of key at the given level.
// Asking for a level deeper than the key is a programming error.
func CreateAncestorKey(key Key, level int) Key {
	if level > key.Level || level < 0 {
		panic(fmt.Sprintf("quadtree: ancestor level %d invalid for key %v", level, key))
	}
	shift := key.Level - level
	return Key{
		Level: level,
		X:     key.X >> shift,
		Y:     key.Y >> shift,
	}
}
