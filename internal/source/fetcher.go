package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jaennil/guide_helper/backend/terrain/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/terrain/internal/tile"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/metrics"
	"golang.org/x/time/rate"
)

// DefaultMaxTileBytes caps an upstream response body.
const DefaultMaxTileBytes = 16 << 20

var ErrTileTooLarge = errors.New("tile exceeds size limit")

// Fetcher reads encoded tiles, consulting a raw tile cache before going to
// the upstream location. Missing tiles are reported as tile.ErrNoData.
type Fetcher struct {
	layer     string
	cache     cache.TileCache
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	maxBytes  int64
	logger    logger.Logger
}

type FetcherConfig struct {
	Layer     string
	UserAgent string
	Timeout   time.Duration

	// RequestsPerSecond bounds upstream requests. Zero means unlimited.
	RequestsPerSecond float64

	// MaxTileBytes defaults to DefaultMaxTileBytes.
	MaxTileBytes int64
}

// NewFetcher creates a Fetcher. A nil tileCache disables caching.
func NewFetcher(cfg FetcherConfig, tileCache cache.TileCache, l logger.Logger) *Fetcher {
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(cfg.RequestsPerSecond))
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	maxBytes := cfg.MaxTileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxTileBytes
	}

	return &Fetcher{
		layer:     cfg.Layer,
		cache:     tileCache,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
		logger:    l,
	}
}

// Fetch returns the bytes stored at location for key.
func (f *Fetcher) Fetch(ctx context.Context, key cache.TileCacheKey, location string) ([]byte, error) {
	if f.cache != nil {
		data, exists, err := f.cache.Get(ctx, key)
		if err != nil {
			f.logger.Warn("failed to check tile cache, will fetch from upstream", "tile", key, "error", err)
		} else if exists && len(data) > 0 {
			metrics.CacheHits.WithLabelValues(f.layer).Inc()
			return data, nil
		}
		metrics.CacheMisses.WithLabelValues(f.layer).Inc()
	}

	data, err := f.fetchUpstream(ctx, location)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, key, data); err != nil {
			f.logger.Warn("failed to store tile in cache", "tile", key, "error", err)
		} else {
			metrics.CacheStores.WithLabelValues(f.layer).Inc()
		}
	}

	return data, nil
}

func (f *Fetcher) fetchUpstream(ctx context.Context, location string) ([]byte, error) {
	if !isRemote(location) {
		data, err := os.ReadFile(strings.TrimPrefix(location, "file://"))
		if errors.Is(err, os.ErrNotExist) {
			return nil, tile.ErrNoData
		}
		return data, err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	data, status, err := f.get(ctx, location)
	metrics.UpstreamLatency.WithLabelValues(f.layer).Observe(time.Since(start).Seconds())
	metrics.UpstreamRequests.WithLabelValues(f.layer, statusLabel(status, err)).Inc()
	if err != nil {
		f.logger.Debug("upstream tile fetch failed", "layer", f.layer, "url", location, "error", err)
	}
	return data, err
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch tile from upstream: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNoContent:
		return nil, resp.StatusCode, tile.ErrNoData
	default:
		return nil, resp.StatusCode, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read tile data: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, resp.StatusCode, fmt.Errorf("%w: more than %d bytes", ErrTileTooLarge, f.maxBytes)
	}
	if len(data) == 0 {
		return nil, resp.StatusCode, tile.ErrNoData
	}
	return data, resp.StatusCode, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func statusLabel(status int, err error) string {
	if status == 0 && err != nil {
		return "error"
	}
	return fmt.Sprint(status)
}
