package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisCache(cfg RedisConfig, l logger.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	l.Info("redis cache initialized", "addr", cfg.Addr, "db", cfg.DB, "ttl", ttl)

	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: l,
	}, nil
}

var _ TileCache = (*RedisCache)(nil)

func (c *RedisCache) keyFor(k TileCacheKey) string {
	return fmt.Sprintf("tile:%s:%d:%d:%d", k.Layer, k.Z, k.X, k.Y)
}

func (c *RedisCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	start := time.Now()
	defer c.observe("get", start)

	data, err := c.client.Get(ctx, c.keyFor(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		metrics.RedisErrors.WithLabelValues("get").Inc()
		return nil, false, fmt.Errorf("redis get error: %w", err)
	}

	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	start := time.Now()
	defer c.observe("set", start)

	if err := c.client.Set(ctx, c.keyFor(k), []byte(v), c.ttl).Err(); err != nil {
		metrics.RedisErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

func (c *RedisCache) observe(operation string, start time.Time) {
	metrics.RedisOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	stats := c.client.PoolStats()
	metrics.RedisPoolStats.WithLabelValues("total_conns").Set(float64(stats.TotalConns))
	metrics.RedisPoolStats.WithLabelValues("idle_conns").Set(float64(stats.IdleConns))
	metrics.RedisPoolStats.WithLabelValues("stale_conns").Set(float64(stats.StaleConns))
	metrics.RedisPoolStats.WithLabelValues("timeouts").Set(float64(stats.Timeouts))
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
