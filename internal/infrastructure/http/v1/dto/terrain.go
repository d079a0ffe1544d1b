package dto

import (
	"math"

	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
	"github.com/jaennil/guide_helper/backend/terrain/internal/tile"
	"github.com/jaennil/guide_helper/backend/terrain/internal/usecase"
)

// Observer is a viewpoint in degrees and meters.
type Observer struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
	Alt float64 `json:"alt" validate:"gte=0,lte=100000000"`
}

func (o Observer) ToDomain() tile.Observer {
	return tile.Observer{
		Lat: o.Lat * math.Pi / 180,
		Lon: o.Lon * math.Pi / 180,
		Alt: o.Alt,
	}
}

func ObserverFromDomain(o tile.Observer) Observer {
	return Observer{
		Lat: o.Lat * 180 / math.Pi,
		Lon: o.Lon * 180 / math.Pi,
		Alt: o.Alt,
	}
}

type AltitudeQuery struct {
	Lat float64 `form:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `form:"lon" validate:"gte=-180,lte=180"`
}

type AltitudeResponse struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Altitude float64 `json:"altitude"`
}

type Bounds struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

type Tile struct {
	Key    string   `json:"key"`
	Level  int      `json:"level"`
	X      int      `json:"x"`
	Y      int      `json:"y"`
	Bounds Bounds   `json:"bounds"`
	Layers []string `json:"layers"`
}

type Stats struct {
	Frames         uint64 `json:"frames"`
	Nodes          int    `json:"nodes"`
	QueuedLoads    int    `json:"queued_loads"`
	LoadsRequested int    `json:"loads_requested"`
	LoadsFinished  int    `json:"loads_finished"`
	LoadsCanceled  int    `json:"loads_canceled"`
	Textures       int    `json:"textures"`
}

type TilesResponse struct {
	Observer Observer `json:"observer"`
	Tiles    []Tile   `json:"tiles"`
	Stats    Stats    `json:"stats"`
}

func TilesFromSnapshot(s *usecase.Snapshot) TilesResponse {
	tiles := make([]Tile, 0, len(s.Tiles))
	for _, t := range s.Tiles {
		layers := make([]string, 0, len(t.Layers))
		for _, layer := range t.Layers {
			layers = append(layers, layer.String())
		}
		tiles = append(tiles, Tile{
			Key:    t.Key.String(),
			Level:  t.Key.Level,
			X:      t.Key.X,
			Y:      t.Key.Y,
			Bounds: boundsFromBox(t.Bounds),
			Layers: layers,
		})
	}

	return TilesResponse{
		Observer: ObserverFromDomain(s.Observer),
		Tiles:    tiles,
		Stats:    Stats(s.Stats),
	}
}

// boundsFromBox converts a lon/lat box in radians to degrees.
func boundsFromBox(b quadtree.Box) Bounds {
	return Bounds{
		MinLon: b.Min.X * 180 / math.Pi,
		MinLat: b.Min.Y * 180 / math.Pi,
		MaxLon: b.Max.X * 180 / math.Pi,
		MaxLat: b.Max.Y * 180 / math.Pi,
	}
}
