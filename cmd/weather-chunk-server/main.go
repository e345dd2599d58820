package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	httpapi "github.com/i474232898/weather-chunk-server/internal/api/http"
	"github.com/i474232898/weather-chunk-server/internal/config"
	"github.com/i474232898/weather-chunk-server/internal/dataset"
	"github.com/i474232898/weather-chunk-server/internal/grid"
	"github.com/i474232898/weather-chunk-server/internal/grid/sources"
	"github.com/i474232898/weather-chunk-server/internal/logging"
	"github.com/i474232898/weather-chunk-server/internal/metrics"
	"github.com/i474232898/weather-chunk-server/internal/scheduler"
	"github.com/i474232898/weather-chunk-server/internal/store"
	"github.com/i474232898/weather-chunk-server/internal/weather"
)

const appName = "weather-chunk-server"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logging.New(&config.AppConfig{Env: "prod"}, appName).Error("failed to load config", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg, appName)

	// Shared HTTP client for the index download.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// The index must be in memory before any lookup is served.
	var src grid.Source
	if cfg.IndexURL != "" {
		src = sources.NewHTTPSource(httpClient, cfg.IndexURL)
	} else {
		src = sources.NewFileSource(afero.NewOsFs(), cfg.IndexPath)
	}
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.IndexFetchTimeout)
	finder, err := grid.Load(loadCtx, src)
	cancelLoad()
	if err != nil {
		log.Error("failed to load chunk index", "source", src.Name(), "err", err)
		os.Exit(1)
	}
	metrics.IndexEntries.Set(float64(finder.Len()))
	log.Info("chunk index loaded", "source", src.Name(), "entries", finder.Len())

	projector, err := grid.NewLambertProjector()
	if err != nil {
		log.Error("failed to build projection", "err", err)
		os.Exit(1)
	}
	locator := grid.NewLocator(projector, finder, cfg.IndexMaxDistance)

	// Snapshots are read straight from disk, optionally memoized between rescans.
	fsys := afero.NewOsFs()
	live := dataset.NewDirResolver(fsys, cfg.SnapshotRoot)
	var (
		resolver  weather.SnapshotResolver = live
		refresher scheduler.SnapshotRefresher
	)
	if cfg.SnapshotRefreshInterval > 0 {
		cached := dataset.NewCachedResolver(live)
		resolver, refresher = cached, cached
	}

	// In-memory response cache, fronting Redis when configured.
	memStore := store.NewMemoryStore(cfg.CacheMaxEntries, cfg.CacheTTL)
	var cache weather.Cache = memStore
	if client := store.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); client != nil {
		defer client.Close()
		redisStore := store.NewRedisStore(client, cfg.CacheTTL, log)
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			log.Warn("redis unreachable; using in-memory cache only", "addr", cfg.RedisAddr, "err", err)
		} else {
			cache = store.NewTiered(memStore, redisStore)
			log.Info("redis cache tier enabled", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		}
		cancelPing()
	}

	// Core service running the lookup pipeline.
	service := weather.NewService(locator, resolver, dataset.NewChunkStore(fsys), cache, weather.Options{
		DecodeConcurrency: cfg.DecodeConcurrency,
		DecodeTimeout:     cfg.DecodeTimeout,
		Logger:            log,
	})

	if snap, err := resolver.Latest(context.Background()); err != nil {
		log.Warn("no snapshot available yet", "root", cfg.SnapshotRoot, "err", err)
	} else {
		log.Info("serving snapshot", "snapshot", snap.Name, "modified", snap.ModTime)
	}

	// Background snapshot rescans and cache purges.
	sched := scheduler.New(log, refresher, cfg.SnapshotRefreshInterval, memStore, cfg.CachePurgeInterval)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "err", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler(log),
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		log.Info("listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "err", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "err", err)
	}
}
