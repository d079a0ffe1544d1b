package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	v1 "github.com/jaennil/guide_helper/backend/terrain/internal/infrastructure/http/v1"
	"github.com/jaennil/guide_helper/backend/terrain/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/terrain/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/terrain/internal/source"
	"github.com/jaennil/guide_helper/backend/terrain/internal/tile"
	"github.com/jaennil/guide_helper/backend/terrain/internal/usecase"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/config"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/http_server"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/telemetry"
)

type sources struct {
	elevation tile.Source
	albedo    tile.Source
	landMask  tile.Source
	attribute tile.Source
}

func buildSources(cfg config.Sources, tileCache cache.TileCache, l logger.Logger) (sources, error) {
	var s sources
	layers := []struct {
		layer tile.Layer
		cfg   config.Source
		dst   *tile.Source
	}{
		{tile.LayerHeight, cfg.Elevation, &s.elevation},
		{tile.LayerAlbedo, cfg.Albedo, &s.albedo},
		{tile.LayerLandMask, cfg.LandMask, &s.landMask},
		{tile.LayerAttribute, cfg.Attribute, &s.attribute},
	}

	for _, layer := range layers {
		src, err := source.New(layer.layer, layer.cfg, cfg, tileCache, l)
		if err != nil {
			return sources{}, fmt.Errorf("%s source: %w", layer.layer, err)
		}
		if src == nil {
			l.Info("layer source disabled", "layer", layer.layer)
			continue
		}
		l.Info("layer source configured", "layer", layer.layer, "url_template", layer.cfg.URLTemplate)
		*layer.dst = src
	}

	return s, nil
}

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger)
	defer l.Sync()

	l.Info("app config", "cfg", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = logger.WithLogger(ctx, l)

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			l.Fatal("failed to initialize telemetry", "error", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				l.Error("failed to shutdown telemetry", "error", err)
			}
		}()
		l.Info("telemetry initialized", "service", cfg.Telemetry.ServiceName)
	}

	tileCache, err := cache.New(cfg.Storage, cfg.Redis, l)
	if err != nil {
		l.Fatal("failed to open tile cache", "backend", cfg.Storage.Backend, "error", err)
	}
	defer func() {
		if err := tileCache.Close(); err != nil {
			l.Error("failed to close tile cache", "error", err)
		}
	}()
	l.Info("tile cache opened", "backend", cfg.Storage.Backend)

	src, err := buildSources(cfg.Sources, tileCache, l)
	if err != nil {
		l.Fatal("failed to configure sources", "error", err)
	}

	imagesLoader := tile.NewPlanetImagesLoader(tile.PlanetImagesLoaderConfig{
		Elevation:          src.elevation,
		Albedo:             src.albedo,
		LandMask:           src.landMask,
		Attribute:          src.attribute,
		PlanetRadius:       cfg.Planet.Radius,
		ImageCacheCapacity: cfg.Loader.ImageCacheCapacity,
	}, l)

	pool := tile.NewWorkerPool(cfg.Loader.Workers, l)
	defer pool.Close()

	async := tile.NewConcurrentAsyncLoader(imagesLoader, pool, cfg.Loader.MaxAppliesPerUpdate, l)

	var altitude *tile.AltitudeProvider
	if src.elevation != nil {
		altitude = tile.NewAltitudeProvider(src.elevation, cfg.Planet.MaxLevel, pool, l)
	}

	terrain := usecase.NewTerrainUseCase(usecase.TerrainConfig{
		FrameInterval:   cfg.Planet.FrameInterval,
		PlanetRadius:    cfg.Planet.Radius,
		MaxLevel:        cfg.Planet.MaxLevel,
		MaxQueuedLoads:  cfg.Loader.MaxQueuedLoads,
		TextureCapacity: cfg.Textures.Capacity,
		Observer: tile.Observer{
			Lat: cfg.Planet.ObserverLat * math.Pi / 180,
			Lon: cfg.Planet.ObserverLon * math.Pi / 180,
			Alt: cfg.Planet.ObserverAlt,
		},
	}, async, altitude, l)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		terrain.Run(ctx)
	}()

	validate := validator.New()
	h := handler.NewHandler(validate, terrain)
	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled)

	httpServer := http_server.NewServer(ctx, cfg.HTTP.Server, router)

	go func() {
		l.Info("starting http server...", "address", httpServer.Addr)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("http server failed", "error", err)
		}
		l.Info("http server stopped", "address", httpServer.Addr)
	}()

	<-ctx.Done()
	l.Info("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	l.Info("shutting down http server...", "address", httpServer.Addr)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Error("http server shutdown failed", "error", err)
	} else {
		l.Info("http_server shutdown completed")
	}

	loopDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(loopDone)
	}()
	select {
	case <-loopDone:
		l.Info("terrain loop finished")
	case <-shutdownCtx.Done():
		l.Warn("timeout waiting for terrain loop to finish")
	}

	l.Info("application shutdown completed")
}
