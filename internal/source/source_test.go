package source

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaennil/guide_helper/backend/terrain/internal/elevation"
	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
	"github.com/jaennil/guide_helper/backend/terrain/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/terrain/internal/tile"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/config"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
)

func notCanceled() bool { return false }

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newFileSource(t *testing.T, dir string, format Format) *XYZSource {
	t.Helper()
	s, err := NewXYZSource(XYZConfig{
		URLTemplate: filepath.Join(dir, "{key}_{z}_{x}_{y}.png"),
		APIKey:      "testKey",
		Levels:      LevelRange{Min: 0, Max: 2},
		Format:      format,
	}, NewFetcher(FetcherConfig{Layer: "test"}, nil, logger.NewNop()))
	require.NoError(t, err)
	return s
}

func TestLevelRange(t *testing.T) {
	r := LevelRange{Min: 0, Max: 2}

	assert.True(t, r.HasAnyChildren(quadtree.NewKey(0, 0, 0)))
	assert.True(t, r.HasAnyChildren(quadtree.NewKey(1, 0, 0)))
	assert.False(t, r.HasAnyChildren(quadtree.NewKey(2, 0, 0)))

	key, ok := r.HighestAvailableLevel(quadtree.NewKey(1, 2, 3))
	assert.True(t, ok)
	assert.Equal(t, quadtree.NewKey(1, 2, 3), key)

	key, ok = r.HighestAvailableLevel(quadtree.NewKey(3, 2, 2))
	assert.True(t, ok)
	assert.Equal(t, quadtree.NewKey(2, 1, 1), key)

	_, ok = LevelRange{Min: 2, Max: 4}.HighestAvailableLevel(quadtree.NewKey(1, 0, 0))
	assert.False(t, ok)
}

func TestXYZSourceReadsFiles(t *testing.T) {
	dir := t.TempDir()
	s := newFileSource(t, dir, FormatColor)

	data := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testKey_2_1_3.png"), data, 0o644))

	img, err := s.CreateImage(context.Background(), quadtree.NewKey(2, 1, 3), notCanceled)
	require.NoError(t, err)
	assert.Equal(t, 1, img.Width())

	_, err = s.CreateImage(context.Background(), quadtree.NewKey(0, 1, 2), notCanceled)
	assert.ErrorIs(t, err, tile.ErrNoData)

	_, err = s.CreateImage(context.Background(), quadtree.NewKey(3, 1, 3), notCanceled)
	assert.ErrorIs(t, err, tile.ErrNoData, "levels outside the range have no data")

	_, err = s.CreateImage(context.Background(), quadtree.NewKey(2, 1, 3), func() bool { return true })
	assert.ErrorIs(t, err, tile.ErrCanceled)
}

func TestXYZSourceAnnotatesElevation(t *testing.T) {
	dir := t.TempDir()
	s := newFileSource(t, dir, FormatElevation)

	const value = 23
	g := image.NewGray16(image.Rect(0, 0, 1, 1))
	g.SetGray16(0, 0, color.Gray16{Y: value})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testKey_2_1_3.png"), encodePNG(t, g), 0o644))

	img, err := s.CreateImage(context.Background(), quadtree.NewKey(2, 1, 3), notCanceled)
	require.NoError(t, err)

	r, ok := elevation.GetRerange(img)
	require.True(t, ok)
	bounds, ok := elevation.GetBounds(img)
	require.True(t, ok)
	assert.Equal(t, uint16(value), r.ColorForElevation(bounds.Min))
	assert.Equal(t, uint16(value), r.ColorForElevation(bounds.Max))
}

func TestXYZSourceURL(t *testing.T) {
	fetcher := NewFetcher(FetcherConfig{Layer: "test"}, nil, logger.NewNop())

	top, err := NewXYZSource(XYZConfig{
		URLTemplate: "https://tiles.example.com/{z}/{x}/{y}.png?token={key}",
		APIKey:      "secret",
		Levels:      LevelRange{Max: 5},
	}, fetcher)
	require.NoError(t, err)
	assert.Equal(t, "https://tiles.example.com/3/5/1.png?token=secret", top.URL(quadtree.NewKey(3, 5, 1)))

	bottom, err := NewXYZSource(XYZConfig{
		URLTemplate: "https://tiles.example.com/{z}/{x}/{y}.png",
		Levels:      LevelRange{Max: 5},
		YOrigin:     YOriginBottom,
	}, fetcher)
	require.NoError(t, err)
	assert.Equal(t, "https://tiles.example.com/3/5/6.png", bottom.URL(quadtree.NewKey(3, 5, 1)))

	bing, err := NewXYZSource(XYZConfig{
		URLTemplate: "https://t1.example.com/a{quadkey}.jpeg",
		Levels:      LevelRange{Max: 5},
	}, fetcher)
	require.NoError(t, err)
	assert.Equal(t, "https://t1.example.com/a213.jpeg", bing.URL(quadtree.NewKey(3, 3, 5)))
}

func TestNewXYZSourceValidates(t *testing.T) {
	fetcher := NewFetcher(FetcherConfig{}, nil, logger.NewNop())

	tests := []struct {
		name string
		cfg  XYZConfig
	}{
		{name: "empty template", cfg: XYZConfig{}},
		{name: "missing y", cfg: XYZConfig{URLTemplate: "http://a/{z}/{x}.png"}},
		{name: "inverted levels", cfg: XYZConfig{URLTemplate: "http://a/{z}/{x}/{y}", Levels: LevelRange{Min: 3, Max: 1}}},
		{name: "unknown format", cfg: XYZConfig{URLTemplate: "http://a/{z}/{x}/{y}", Format: "webp"}},
		{name: "unknown y origin", cfg: XYZConfig{URLTemplate: "http://a/{z}/{x}/{y}", YOrigin: "middle"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewXYZSource(tt.cfg, fetcher)
			assert.Error(t, err)
		})
	}
}

func TestQuadKey(t *testing.T) {
	assert.Equal(t, "", QuadKey(quadtree.NewKey(0, 0, 0)))
	assert.Equal(t, "213", QuadKey(quadtree.NewKey(3, 3, 5)))
}

func TestXYZSourceFetchesThroughCache(t *testing.T) {
	tileData := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 2, 2)))

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "terrain-test", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/1/0/0.png":
			w.Write(tileData)
		case "/1/1/0.png":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tileCache := cache.NewMapCache(8)
	s, err := NewXYZSource(XYZConfig{
		URLTemplate: server.URL + "/{z}/{x}/{y}.png",
		Levels:      LevelRange{Max: 4},
	}, NewFetcher(FetcherConfig{Layer: "albedo", UserAgent: "terrain-test", RequestsPerSecond: 100}, tileCache, logger.NewNop()))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		img, err := s.CreateImage(ctx, quadtree.NewKey(1, 0, 0), notCanceled)
		require.NoError(t, err)
		assert.Equal(t, 2, img.Width())
	}
	assert.Equal(t, int32(1), requests.Load())
	assert.Equal(t, 1, tileCache.Len())

	_, err = s.CreateImage(ctx, quadtree.NewKey(1, 1, 0), notCanceled)
	require.Error(t, err)
	assert.NotErrorIs(t, err, tile.ErrNoData)

	_, err = s.CreateImage(ctx, quadtree.NewKey(2, 0, 0), notCanceled)
	assert.ErrorIs(t, err, tile.ErrNoData)
	assert.Equal(t, 1, tileCache.Len(), "failures are not stored")
}

func TestFetcherRejectsOversizedTile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte{0xff}, 1024))
	}))
	defer server.Close()

	tileCache := cache.NewMapCache(8)
	key := cache.TileCacheKey{Layer: "albedo", Z: 0, X: 0, Y: 0}

	f := NewFetcher(FetcherConfig{Layer: "albedo", MaxTileBytes: 1023}, tileCache, logger.NewNop())
	_, err := f.Fetch(context.Background(), key, server.URL+"/0/0/0.png")
	assert.ErrorIs(t, err, ErrTileTooLarge)
	assert.Equal(t, 0, tileCache.Len())

	f = NewFetcher(FetcherConfig{Layer: "albedo", MaxTileBytes: 1024}, tileCache, logger.NewNop())
	data, err := f.Fetch(context.Background(), key, server.URL+"/0/0/0.png")
	require.NoError(t, err)
	assert.Len(t, data, 1024)
}

func TestXYZSourceDecodesTerrainRGB(t *testing.T) {
	rgb := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	// 0 m and 100 m
	rgb.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 134, B: 160, A: 255})
	rgb.SetNRGBA(1, 0, color.NRGBA{R: 1, G: 138, B: 136, A: 255})

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0_0_0.png"), encodePNG(t, rgb), 0o644))

	s, err := NewXYZSource(XYZConfig{
		URLTemplate: filepath.Join(dir, "{z}_{x}_{y}.png"),
		Levels:      LevelRange{Max: 10},
		Format:      FormatMapboxElevation,
	}, NewFetcher(FetcherConfig{Layer: "elevation"}, nil, logger.NewNop()))
	require.NoError(t, err)

	img, err := s.CreateImage(context.Background(), quadtree.NewKey(0, 0, 0), notCanceled)
	require.NoError(t, err)

	r, err := elevation.RequireRerange(img)
	require.NoError(t, err)
	assert.Equal(t, elevation.DefaultEarthRerange, r)

	g := img.Gray16()
	assert.InDelta(t, 0, r.ElevationForColor(float64(g.Gray16At(0, 0).Y)), 0.5)
	assert.InDelta(t, 100, r.ElevationForColor(float64(g.Gray16At(1, 0).Y)), 0.5)

	bounds, ok := elevation.GetBounds(img)
	require.True(t, ok)
	assert.InDelta(t, 0, bounds.Min, 1e-6)
	assert.InDelta(t, 100, bounds.Max, 1e-6)
}

func TestNewFromConfig(t *testing.T) {
	s, err := New(tile.LayerAlbedo, config.Source{}, config.Sources{}, nil, logger.NewNop())
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = New(tile.LayerHeight, config.Source{
		URLTemplate: "https://tiles.example.com/{z}/{x}/{y}.png",
		Format:      string(FormatElevation),
		MaxLevel:    8,
		YOrigin:     string(YOriginTop),
	}, config.Sources{RequestsPerSecond: 5}, cache.NewMapCache(4), logger.NewNop())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.True(t, s.HasAnyChildren(quadtree.NewKey(7, 0, 0)))
	assert.False(t, s.HasAnyChildren(quadtree.NewKey(8, 0, 0)))

	s, err = New(tile.LayerHeight, config.Source{
		URLTemplate: "https://api.example.com/v4/terrain-rgb/{z}/{x}/{y}.pngraw?access_token={key}",
		Format:      string(FormatMapboxElevation),
		MaxLevel:    8,
		Projection:  string(ProjectionPlateCarree),
	}, config.Sources{}, nil, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SphericalMercatorSource{}, s, "terrain-RGB is always web mercator")
	assert.False(t, s.HasAnyChildren(quadtree.NewKey(7, 0, 0)))

	s, err = New(tile.LayerAlbedo, config.Source{
		URLTemplate: "https://tile.example.com/{z}/{x}/{y}.png",
		MaxLevel:    8,
		Projection:  string(ProjectionSphericalMercator),
	}, config.Sources{}, nil, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SphericalMercatorSource{}, s)

	_, err = New(tile.LayerAlbedo, config.Source{
		URLTemplate: "https://tile.example.com/{z}/{x}/{y}.png",
		MaxLevel:    8,
		Projection:  "conic",
	}, config.Sources{}, nil, logger.NewNop())
	assert.Error(t, err)
}
