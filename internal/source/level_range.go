package source

import "github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"

// LevelRange limits a source to tiles between Min and Max inclusive.
type LevelRange struct {
	Min int
	Max int
}

func (r LevelRange) Contains(level int) bool {
	return level >= r.Min && level <= r.Max
}

func (r LevelRange) HasAnyChildren(key quadtree.Key) bool {
	return key.Level < r.Max
}

// HighestAvailableLevel returns key itself when its level is in range and
// its ancestor at Max when it is deeper. Keys above Min have no data.
func (r LevelRange) HighestAvailableLevel(key quadtree.Key) (quadtree.Key, bool) {
	switch {
	case key.Level < r.Min:
		return quadtree.Key{}, false
	case key.Level > r.Max:
		return quadtree.CreateAncestorKey(key, r.Max), true
	}
	return key, true
}
