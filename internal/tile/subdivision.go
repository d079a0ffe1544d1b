package tile

import (
	"math"

	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
)

// Observer is a viewpoint above a planet. Angles are in radians, altitude in
// meters above the surface.
type Observer struct {
	Lat float64
	Lon float64
	Alt float64
}

// PlanetSubdivisionPredicate subdivides tiles that face the observer and look
// large from the observer's position.
type PlanetSubdivisionPredicate struct {
	Observer     Observer
	PlanetRadius float64
	MaxLevel     int
}

var _ SubdivisionPredicate = (*PlanetSubdivisionPredicate)(nil)

// ShouldSubdivide expects lon/lat bounds as produced by the globe.
func (p *PlanetSubdivisionPredicate) ShouldSubdivide(bounds quadtree.Box, key quadtree.Key) bool {
	if key.Level >= p.MaxLevel {
		return false
	}

	latLonBounds := bounds.Swap()
	nearest := nearestPointInSolidBox(quadtree.Vec2{X: p.Observer.Lat, Y: p.Observer.Lon}, latLonBounds)

	tileP := geocentric(nearest.X, nearest.Y, 0, p.PlanetRadius)
	observerP := geocentric(p.Observer.Lat, p.Observer.Lon, math.Max(1, p.Observer.Alt), p.PlanetRadius)

	dir := observerP.sub(tileP)
	distance := dir.length()
	if distance > 0 {
		dir = dir.scale(1 / distance)
	}
	tileP = tileP.scale(1 / tileP.length())

	cosElevation := dir.dot(tileP)
	if cosElevation <= 0 {
		return false
	}

	tileSize := p.PlanetRadius / math.Pow(2, float64(key.Level))
	projectedSize := tileSize / math.Max(0.01, distance)
	return projectedSize > lerp(0.4, 0.1, cosElevation)
}

// nearestPointInSolidBox clamps a lat/lon point into bounds, choosing the
// longitude wrap of the point closest to the box.
func nearestPointInSolidBox(point quadtree.Vec2, bounds quadtree.Box) quadtree.Vec2 {
	centerLon := bounds.Center().Y

	wrapped := point
	dist := math.Abs(point.Y - centerLon)
	if d := math.Abs(point.Y - 2*math.Pi - centerLon); d < dist {
		wrapped.Y = point.Y - 2*math.Pi
		dist = d
	}
	if d := math.Abs(point.Y + 2*math.Pi - centerLon); d < dist {
		wrapped.Y = point.Y + 2*math.Pi
	}

	return bounds.Clamp(wrapped)
}

type vec3 struct {
	x, y, z float64
}

func geocentric(lat, lon, alt, radius float64) vec3 {
	r := radius + alt
	return vec3{
		x: r * math.Cos(lat) * math.Cos(lon),
		y: r * math.Cos(lat) * math.Sin(lon),
		z: r * math.Sin(lat),
	}
}

func (v vec3) sub(o vec3) vec3 { return vec3{v.x - o.x, v.y - o.y, v.z - o.z} }
func (v vec3) scale(s float64) vec3 { return vec3{v.x * s, v.y * s, v.z * s} }
func (v vec3) dot(o vec3) float64 { return v.x*o.x + v.y*o.y + v.z*o.z }
func (v vec3) length() float64 { return math.Sqrt(v.dot(v)) }

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
