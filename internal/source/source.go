// Package source implements tile sources backed by XYZ tile servers and
// local tile directories.
package source

import (
	"fmt"

	"github.com/jaennil/guide_helper/backend/terrain/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/terrain/internal/tile"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/config"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
)

// NewMapboxElevationSource reads Mapbox terrain-RGB tiles. levels are
// mercator levels of the upstream server.
func NewMapboxElevationSource(urlTemplate, apiKey string, levels LevelRange, fetcher *Fetcher) (*SphericalMercatorSource, error) {
	mercator, err := NewXYZSource(XYZConfig{
		URLTemplate: urlTemplate,
		APIKey:      apiKey,
		Levels:      levels,
		YOrigin:     YOriginTop,
		Format:      FormatMapboxElevation,
	}, fetcher)
	if err != nil {
		return nil, err
	}
	return NewSphericalMercatorSource(mercator)
}

// New builds the source configured for layer. It returns a nil source when
// the layer has no URL template.
func New(layer tile.Layer, cfg config.Source, common config.Sources, tileCache cache.TileCache, l logger.Logger) (tile.Source, error) {
	if cfg.URLTemplate == "" {
		return nil, nil
	}

	fetcher := NewFetcher(FetcherConfig{
		Layer:             layer.String(),
		RequestsPerSecond: common.RequestsPerSecond,
		UserAgent:         common.UserAgent,
	}, tileCache, l)

	s, err := NewXYZSource(XYZConfig{
		URLTemplate: cfg.URLTemplate,
		APIKey:      cfg.APIKey,
		Levels:      LevelRange{Min: cfg.MinLevel, Max: cfg.MaxLevel},
		YOrigin:     YOrigin(cfg.YOrigin),
		Format:      Format(cfg.Format),
	}, fetcher)
	if err != nil {
		return nil, err
	}

	projection := Projection(cfg.Projection)
	if s.format == FormatMapboxElevation {
		projection = ProjectionSphericalMercator
	}

	l.Info("tile source configured", "layer", layer, "format", s.format, "projection", projection,
		"min_level", cfg.MinLevel, "max_level", cfg.MaxLevel)

	switch projection {
	case ProjectionPlateCarree, "":
		return s, nil
	case ProjectionSphericalMercator:
		m, err := NewSphericalMercatorSource(s)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown projection %q", cfg.Projection)
}
