package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/jaennil/guide_helper/backend/terrain/internal/elevation"
	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
	"github.com/jaennil/guide_helper/backend/terrain/internal/raster"
	"github.com/jaennil/guide_helper/backend/terrain/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/terrain/internal/tile"
)

type Format string

const (
	// FormatColor tiles are used as decoded.
	FormatColor Format = "color"
	// FormatElevation tiles hold 16 bit heights in the default earth rerange.
	FormatElevation Format = "elevation"
	// FormatMapboxElevation tiles hold terrain-RGB encoded heights.
	FormatMapboxElevation Format = "mapbox-elevation"
)

type YOrigin string

const (
	YOriginTop    YOrigin = "top"
	YOriginBottom YOrigin = "bottom"
)

var ErrInvalidTemplate = errors.New("invalid url template")

// XYZConfig describes a tile layer addressed by a URL template. The template
// may contain {z}, {x}, {y}, {quadkey} and {key}, where {key} is replaced by
// the API key. Templates without an http(s) scheme are read from disk.
type XYZConfig struct {
	URLTemplate string
	APIKey      string
	Levels      LevelRange
	YOrigin     YOrigin
	Format      Format
}

// XYZSource implements tile.Source over an XYZ tile server or directory.
type XYZSource struct {
	LevelRange

	template string
	yOrigin  YOrigin
	format   Format
	layer    string
	fetcher  *Fetcher
}

var _ tile.Source = (*XYZSource)(nil)

func NewXYZSource(cfg XYZConfig, fetcher *Fetcher) (*XYZSource, error) {
	if err := validateTemplate(cfg.URLTemplate); err != nil {
		return nil, err
	}
	if cfg.Levels.Min > cfg.Levels.Max {
		return nil, fmt.Errorf("invalid level range [%d, %d]", cfg.Levels.Min, cfg.Levels.Max)
	}

	format := cfg.Format
	switch format {
	case "":
		format = FormatColor
	case FormatColor, FormatElevation, FormatMapboxElevation:
	default:
		return nil, fmt.Errorf("unknown tile format %q", cfg.Format)
	}

	yOrigin := cfg.YOrigin
	if yOrigin == "" {
		yOrigin = YOriginTop
	}
	if yOrigin != YOriginTop && yOrigin != YOriginBottom {
		return nil, fmt.Errorf("unknown y origin %q", cfg.YOrigin)
	}

	return &XYZSource{
		LevelRange: cfg.Levels,
		template:   strings.ReplaceAll(cfg.URLTemplate, "{key}", cfg.APIKey),
		yOrigin:    yOrigin,
		format:     format,
		layer:      fetcher.layer,
		fetcher:    fetcher,
	}, nil
}

func validateTemplate(template string) error {
	if template == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTemplate)
	}
	if strings.Contains(template, "{quadkey}") {
		return nil
	}
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(template, p) {
			return fmt.Errorf("%w: missing %s in %q", ErrInvalidTemplate, p, template)
		}
	}
	return nil
}

// URL returns the location of key.
func (s *XYZSource) URL(key quadtree.Key) string {
	y := key.Y
	if s.yOrigin == YOriginBottom {
		y = (1 << key.Level) - 1 - key.Y
	}

	return strings.NewReplacer(
		"{z}", strconv.Itoa(key.Level),
		"{x}", strconv.Itoa(key.X),
		"{y}", strconv.Itoa(y),
		"{quadkey}", QuadKey(key),
	).Replace(s.template)
}

func (s *XYZSource) CreateImage(ctx context.Context, key quadtree.Key, canceled tile.CancelSupplier) (*raster.Image, error) {
	if canceled() {
		return nil, tile.ErrCanceled
	}
	if !s.Contains(key.Level) {
		return nil, tile.ErrNoData
	}

	data, err := s.fetcher.Fetch(ctx, cache.TileCacheKey{Layer: s.layer, Z: key.Level, X: key.X, Y: key.Y}, s.URL(key))
	if err != nil {
		return nil, err
	}
	if canceled() {
		return nil, tile.ErrCanceled
	}

	img, err := raster.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("tile %v: %w", key, err)
	}

	switch s.format {
	case FormatElevation:
		return elevationImage(img), nil
	case FormatMapboxElevation:
		return mapboxElevationImage(img), nil
	}
	return img, nil
}

// elevationImage interprets the decoded tile as 16 bit heights in the
// default earth rerange.
func elevationImage(img *raster.Image) *raster.Image {
	height := raster.New(img.Gray16())
	r := elevation.DefaultEarthRerange
	elevation.SetRerange(height, r)
	elevation.SetBounds(height, elevation.ComputeBounds(height, r))
	return height
}

// mapboxElevationImage converts terrain-RGB, where meters are
// -10000 + (r*65536 + g*256 + b) * 0.1, into 16 bit heights.
func mapboxElevationImage(img *raster.Image) *raster.Image {
	rect := img.Bounds()
	rgba, ok := img.Image.(*image.NRGBA)
	if !ok {
		rgba = image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img.Image, rect.Min, draw.Src)
		rect = rgba.Bounds()
	}

	r := elevation.DefaultEarthRerange
	bounds := elevation.EmptyBounds()
	dst := image.NewGray16(image.Rect(0, 0, rect.Dx(), rect.Dy()))

	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			c := rgba.NRGBAAt(rect.Min.X+x, rect.Min.Y+y)
			meters := -10000 + float64(int(c.R)*256*256+int(c.G)*256+int(c.B))*0.1
			dst.SetGray16(x, y, color.Gray16{Y: r.ColorForElevation(meters)})
			bounds = bounds.Expand(meters)
		}
	}

	height := raster.New(dst)
	elevation.SetRerange(height, r)
	elevation.SetBounds(height, bounds)
	return height
}

// QuadKey returns the Bing Maps quadkey of key.
func QuadKey(key quadtree.Key) string {
	var b strings.Builder
	b.Grow(key.Level)
	for i := key.Level; i > 0; i-- {
		digit := byte('0')
		mask := 1 << (i - 1)
		if key.X&mask != 0 {
			digit++
		}
		if key.Y&mask != 0 {
			digit += 2
		}
		b.WriteByte(digit)
	}
	return b.String()
}
