package tile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
)

const earthRadius = 6371000

func TestPlanetSubdivisionPredicate(t *testing.T) {
	predicate := &PlanetSubdivisionPredicate{
		Observer:     Observer{Lat: 0, Lon: 0, Alt: 1000000},
		PlanetRadius: earthRadius,
		MaxLevel:     10,
	}

	tests := []struct {
		name   string
		key    quadtree.Key
		bounds quadtree.Box
		want   bool
	}{
		{
			name:   "root below observer",
			key:    quadtree.LeftRootKey,
			bounds: quadtree.KeyLonLatBounds(quadtree.LeftRootKey),
			want:   true,
		},
		{
			name:   "root across the prime meridian",
			key:    quadtree.RightRootKey,
			bounds: quadtree.KeyLonLatBounds(quadtree.RightRootKey),
			want:   true,
		},
		{
			name:   "far side of the planet",
			key:    quadtree.NewKey(3, 15, 3),
			bounds: quadtree.NewBox(quadtree.Vec2{X: 3.0, Y: 0}, quadtree.Vec2{X: 3.1, Y: 0.1}),
			want:   false,
		},
		{
			name:   "small distant tile",
			key:    quadtree.NewKey(9, 0, 0),
			bounds: quadtree.NewBox(quadtree.Vec2{X: 1.0, Y: 0.5}, quadtree.Vec2{X: 1.01, Y: 0.51}),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, predicate.ShouldSubdivide(tt.bounds, tt.key))
		})
	}
}

func TestPlanetSubdivisionPredicateRespectsMaxLevel(t *testing.T) {
	predicate := &PlanetSubdivisionPredicate{
		Observer:     Observer{Alt: 10},
		PlanetRadius: earthRadius,
		MaxLevel:     2,
	}

	key := quadtree.NewKey(2, 3, 1)
	assert.False(t, predicate.ShouldSubdivide(quadtree.KeyLonLatBounds(key), key))
}

func TestNearestPointInSolidBoxWrapsLongitude(t *testing.T) {
	bounds := quadtree.NewBox(quadtree.Vec2{X: -0.1, Y: 3.0}, quadtree.Vec2{X: 0.1, Y: math.Pi})

	nearest := nearestPointInSolidBox(quadtree.Vec2{X: 0, Y: -3.1}, bounds)
	assert.InDelta(t, math.Pi, nearest.Y, 1e-9)
	assert.InDelta(t, 0, nearest.X, 1e-9)

	nearest = nearestPointInSolidBox(quadtree.Vec2{X: 0.5, Y: 3.05}, bounds)
	assert.InDelta(t, 3.05, nearest.Y, 1e-9)
	assert.InDelta(t, 0.1, nearest.X, 1e-9)
}
