package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 32, cfg.Loader.MaxQueuedLoads)
	assert.Equal(t, 50*time.Millisecond, cfg.Planet.FrameInterval)
	assert.Equal(t, "top", cfg.Sources.Elevation.YOrigin)
	assert.Empty(t, cfg.Sources.Elevation.URLTemplate)
}

func TestNewFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HTTP_SERVER_PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("LOADER_WORKERS", "8")
	t.Setenv("SOURCES_ELEVATION_URL_TEMPLATE", "https://example.com/{z}/{x}/{y}.png")
	t.Setenv("SOURCES_ELEVATION_FORMAT", "mapbox-elevation")
	t.Setenv("PLANET_MAX_LEVEL", "9")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTP.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 8, cfg.Loader.Workers)
	assert.Equal(t, "mapbox-elevation", cfg.Sources.Elevation.Format)
	assert.Equal(t, "https://example.com/{z}/{x}/{y}.png", cfg.Sources.Elevation.URLTemplate)
	assert.Equal(t, 9, cfg.Planet.MaxLevel)
}

func TestNewRejectsBadValues(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LOADER_WORKERS", "many")

	_, err := New()
	assert.Error(t, err)
}
