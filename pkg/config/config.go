package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		Redis     Redis     `envPrefix:"REDIS_"`
		Storage   Storage   `envPrefix:"STORAGE_"`
		Loader    Loader    `envPrefix:"LOADER_"`
		Textures  Textures  `envPrefix:"TEXTURES_"`
		Planet    Planet    `envPrefix:"PLANET_"`
		Sources   Sources   `envPrefix:"SOURCES_"`
	}

	HTTP struct {
		Server  Server        `envPrefix:"SERVER_"`
		Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
	}

	Server struct {
		Port         string        `env:"PORT" envDefault:"8080"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level  string `env:"LEVEL" envDefault:"info"`
		Format string `env:"FORMAT" envDefault:"console"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"guide-helper-terrain"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	Redis struct {
		Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
		Password string        `env:"PASSWORD" envDefault:""`
		DB       int           `env:"DB" envDefault:"0"`
		TTL      time.Duration `env:"TTL" envDefault:"24h"`
	}

	// Storage selects where raw tile bytes fetched from sources are kept.
	Storage struct {
		Backend        string `env:"BACKEND" envDefault:"memory"`
		SQLitePath     string `env:"SQLITE_PATH" envDefault:"file:terrain.db?cache=shared"`
		BoltPath       string `env:"BOLT_PATH" envDefault:"terrain.bolt"`
		FilesystemRoot string `env:"FILESYSTEM_ROOT" envDefault:"tiles"`
		MemoryCapacity int    `env:"MEMORY_CAPACITY" envDefault:"4096"`
	}

	Loader struct {
		Workers             int `env:"WORKERS" envDefault:"4"`
		MaxAppliesPerUpdate int `env:"MAX_APPLIES_PER_UPDATE" envDefault:"16"`
		MaxQueuedLoads      int `env:"MAX_QUEUED_LOADS" envDefault:"32"`
		ImageCacheCapacity  int `env:"IMAGE_CACHE_CAPACITY" envDefault:"512"`
	}

	Textures struct {
		Capacity int `env:"CAPACITY" envDefault:"256"`
	}

	Planet struct {
		Radius        float64       `env:"RADIUS" envDefault:"6371000"`
		MaxLevel      int           `env:"MAX_LEVEL" envDefault:"12"`
		FrameInterval time.Duration `env:"FRAME_INTERVAL" envDefault:"50ms"`
		ObserverLat   float64       `env:"OBSERVER_LAT" envDefault:"0"`
		ObserverLon   float64       `env:"OBSERVER_LON" envDefault:"0"`
		ObserverAlt   float64       `env:"OBSERVER_ALT" envDefault:"10000000"`
	}

	Sources struct {
		Elevation         Source  `envPrefix:"ELEVATION_"`
		Albedo            Source  `envPrefix:"ALBEDO_"`
		LandMask          Source  `envPrefix:"LAND_MASK_"`
		Attribute         Source  `envPrefix:"ATTRIBUTE_"`
		UserAgent         string  `env:"USER_AGENT" envDefault:"GuideHelper/1.0 (https://github.com/jaennil/guide_helper)"`
		RequestsPerSecond float64 `env:"REQUESTS_PER_SECOND" envDefault:"20"`
	}

	// Source describes one XYZ tile layer. An empty URLTemplate disables it.
	// Projection is plate-carree or spherical-mercator.
	Source struct {
		URLTemplate string `env:"URL_TEMPLATE"`
		Format      string `env:"FORMAT" envDefault:"color"`
		APIKey      string `env:"API_KEY"`
		MinLevel    int    `env:"MIN_LEVEL" envDefault:"0"`
		MaxLevel    int    `env:"MAX_LEVEL" envDefault:"12"`
		YOrigin     string `env:"Y_ORIGIN" envDefault:"top"`
		Projection  string `env:"PROJECTION" envDefault:"plate-carree"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
