package cache

import (
	"context"
	"fmt"

	"github.com/jaennil/guide_helper/backend/terrain/pkg/config"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
)

// TileCacheKey addresses the raw bytes of one source tile.
type TileCacheKey struct {
	Layer string
	X     int
	Y     int
	Z     int
}

func (k TileCacheKey) String() string {
	return fmt.Sprintf("%s/%d/%d/%d", k.Layer, k.Z, k.X, k.Y)
}

type TileCacheValue []byte

// TileCache stores encoded tiles exactly as they were fetched.
type TileCache interface {
	Get(context.Context, TileCacheKey) (TileCacheValue, bool, error)
	Set(context.Context, TileCacheKey, TileCacheValue) error
	Close() error
}

const (
	BackendMemory     = "memory"
	BackendFilesystem = "filesystem"
	BackendSQLite     = "sqlite"
	BackendBolt       = "bolt"
	BackendRedis      = "redis"
)

// New opens the backend selected by cfg.Backend.
func New(cfg config.Storage, redisCfg config.Redis, l logger.Logger) (TileCache, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMapCache(cfg.MemoryCapacity), nil
	case BackendFilesystem:
		return NewFilesystemCache(cfg.FilesystemRoot)
	case BackendSQLite:
		return NewSQLiteCache(cfg.SQLitePath, l)
	case BackendBolt:
		return NewBoltCache(cfg.BoltPath, l)
	case BackendRedis:
		return NewRedisCache(RedisConfig{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
			TTL:      redisCfg.TTL,
		}, l)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
