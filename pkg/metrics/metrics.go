package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Raw tile store metrics
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_raw_cache_hits_total",
		Help: "Total number of raw tile cache hits",
	}, []string{"layer"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_raw_cache_misses_total",
		Help: "Total number of raw tile cache misses",
	}, []string{"layer"})

	CacheStores = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_raw_cache_stores_total",
		Help: "Total number of raw tile cache store operations",
	}, []string{"layer"})

	// Redis metrics
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Duration of Redis operations in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"operation"})

	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	}, []string{"operation"})

	RedisPoolStats = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "redis_pool_stats",
		Help: "Redis connection pool statistics",
	}, []string{"stat"})

	// Upstream tile servers
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_upstream_requests_total",
		Help: "Total number of upstream tile requests",
	}, []string{"layer", "status"})

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "terrain_upstream_latency_seconds",
		Help:    "Latency of upstream tile fetches in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"layer"})

	// Async tile loading
	TileLoadsRequested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrain_tile_loads_requested_total",
		Help: "Total number of tile loads scheduled",
	})

	TileLoadsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_tile_loads_completed_total",
		Help: "Total number of tile loads applied by the consumer",
	}, []string{"result"})

	TileLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "terrain_tile_load_duration_seconds",
		Help:    "Duration of background tile loads in seconds",
		Buckets: prometheus.DefBuckets,
	})

	TileLoadsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "terrain_tile_loads_in_flight",
		Help: "Number of background tile loads currently running or queued",
	})

	CompletionQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "terrain_completion_queue_depth",
		Help: "Number of finished loads waiting to be applied",
	})

	WorkerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "terrain_worker_queue_depth",
		Help: "Number of tasks waiting for a worker",
	})

	// Image and texture caches
	ImageCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_image_cache_hits_total",
		Help: "Total number of decoded image cache hits",
	}, []string{"layer"})

	ImageCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_image_cache_misses_total",
		Help: "Total number of decoded image cache misses",
	}, []string{"layer"})

	TextureCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_texture_cache_hits_total",
		Help: "Total number of texture cache hits",
	}, []string{"type"})

	TextureCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_texture_cache_misses_total",
		Help: "Total number of texture cache misses",
	}, []string{"type"})

	TextureCacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_texture_cache_evictions_total",
		Help: "Total number of textures evicted",
	}, []string{"type"})

	// Quadtree
	QuadTreeNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "terrain_quadtree_nodes",
		Help: "Number of live quadtree nodes",
	})

	VisibleTiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "terrain_visible_tiles",
		Help: "Number of tiles in the visible set",
	})
)
