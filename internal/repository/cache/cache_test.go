package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaennil/guide_helper/backend/terrain/pkg/config"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	c, err := NewRedisCache(RedisConfig{Addr: server.Addr(), TTL: time.Minute}, logger.NewNop())
	require.NoError(t, err)
	return c, server
}

func testCaches(t *testing.T) map[string]TileCache {
	t.Helper()
	dir := t.TempDir()

	fs, err := NewFilesystemCache(filepath.Join(dir, "fs"))
	require.NoError(t, err)
	sqlite, err := NewSQLiteCache(filepath.Join(dir, "tiles.db"), logger.NewNop())
	require.NoError(t, err)
	bolt, err := NewBoltCache(filepath.Join(dir, "tiles.bolt"), logger.NewNop())
	require.NoError(t, err)
	redis, _ := newTestRedisCache(t)

	caches := map[string]TileCache{
		BackendMemory:     NewMapCache(16),
		BackendFilesystem: fs,
		BackendSQLite:     sqlite,
		BackendBolt:       bolt,
		BackendRedis:      redis,
	}
	t.Cleanup(func() {
		for _, c := range caches {
			c.Close()
		}
	})
	return caches
}

func TestTileCacheRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, c := range testCaches(t) {
		t.Run(name, func(t *testing.T) {
			key := TileCacheKey{Layer: "elevation", Z: 3, X: 5, Y: 2}

			_, exists, err := c.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, exists)

			require.NoError(t, c.Set(ctx, key, TileCacheValue("first")))
			v, exists, err := c.Get(ctx, key)
			require.NoError(t, err)
			assert.True(t, exists)
			assert.Equal(t, TileCacheValue("first"), v)

			require.NoError(t, c.Set(ctx, key, TileCacheValue("second")))
			v, _, err = c.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, TileCacheValue("second"), v)

			other := key
			other.Layer = "albedo"
			_, exists, err = c.Get(ctx, other)
			require.NoError(t, err)
			assert.False(t, exists, "layers do not share entries")
		})
	}
}

func TestMapCacheEvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := NewMapCache(2)

	for x := 0; x < 3; x++ {
		require.NoError(t, c.Set(ctx, TileCacheKey{Layer: "albedo", X: x}, TileCacheValue{byte(x)}))
	}

	assert.Equal(t, 2, c.Len())
	_, exists, _ := c.Get(ctx, TileCacheKey{Layer: "albedo", X: 0})
	assert.False(t, exists)
	_, exists, _ = c.Get(ctx, TileCacheKey{Layer: "albedo", X: 2})
	assert.True(t, exists)
}

func TestRedisCacheAppliesTTL(t *testing.T) {
	c, server := newTestRedisCache(t)
	defer c.Close()

	key := TileCacheKey{Layer: "height", Z: 1, X: 1, Y: 0}
	require.NoError(t, c.Set(context.Background(), key, TileCacheValue("tile")))
	assert.Equal(t, time.Minute, server.TTL(c.keyFor(key)))

	server.FastForward(2 * time.Minute)
	_, exists, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNewSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	storage := config.Storage{
		SQLitePath:     filepath.Join(dir, "tiles.db"),
		BoltPath:       filepath.Join(dir, "tiles.bolt"),
		FilesystemRoot: filepath.Join(dir, "fs"),
		MemoryCapacity: 8,
	}

	tests := []struct {
		backend string
		want    any
	}{
		{backend: BackendMemory, want: &MapCache{}},
		{backend: BackendFilesystem, want: &FilesystemCache{}},
		{backend: BackendSQLite, want: &SQLiteCache{}},
		{backend: BackendBolt, want: &BoltCache{}},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			storage.Backend = tt.backend
			c, err := New(storage, config.Redis{}, logger.NewNop())
			require.NoError(t, err)
			defer c.Close()
			assert.IsType(t, tt.want, c)
		})
	}

	storage.Backend = "tape"
	_, err := New(storage, config.Redis{}, logger.NewNop())
	assert.Error(t, err)
}
