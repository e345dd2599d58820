package config

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Env      string
	LogLevel string
	Port     string

	// SnapshotRoot holds one subdirectory per dataset refresh.
	SnapshotRoot string
	// SnapshotRefreshInterval > 0 memoizes the latest snapshot and rescans
	// on this period instead of on every lookup.
	SnapshotRefreshInterval time.Duration

	// Bootstrap grid index. IndexURL wins when both are set.
	IndexURL          string
	IndexPath         string
	IndexFetchTimeout time.Duration
	IndexMaxDistance  float64 // metres, 0 = disabled

	CacheTTL           time.Duration
	CacheMaxEntries    int
	CachePurgeInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DecodeConcurrency int
	DecodeTimeout     time.Duration
	HTTPTimeout       time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}
	cfg := &AppConfig{
		Env:           getenvDefault("APP_ENV", "dev"),
		LogLevel:      getenvDefault("LOG_LEVEL", "info"),
		Port:          getenvDefault("PORT", "8080"),
		SnapshotRoot:  getenvDefault("SNAPSHOT_ROOT", "zarr-data/now"),
		IndexURL:      os.Getenv("INDEX_URL"),
		IndexPath:     os.Getenv("INDEX_PATH"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"SNAPSHOT_REFRESH_INTERVAL", "0s", &cfg.SnapshotRefreshInterval},
		{"INDEX_FETCH_TIMEOUT", "2m", &cfg.IndexFetchTimeout},
		{"CACHE_TTL", "300s", &cfg.CacheTTL},
		{"CACHE_PURGE_INTERVAL", "1m", &cfg.CachePurgeInterval},
		{"DECODE_TIMEOUT", "10s", &cfg.DecodeTimeout},
		{"HTTP_TIMEOUT", "30s", &cfg.HTTPTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = time.ParseDuration(getenvDefault(d.key, d.def)); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
	}

	if cfg.CacheMaxEntries, err = getenvInt("CACHE_MAX_ENTRIES", 1000); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getenvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.DecodeConcurrency, err = getenvInt("DECODE_CONCURRENCY", runtime.NumCPU()); err != nil {
		return nil, err
	}

	maxDist := getenvDefault("INDEX_MAX_DISTANCE", "0")
	if cfg.IndexMaxDistance, err = strconv.ParseFloat(maxDist, 64); err != nil || cfg.IndexMaxDistance < 0 {
		return nil, fmt.Errorf("invalid INDEX_MAX_DISTANCE: %q", maxDist)
	}

	if cfg.IndexURL == "" && cfg.IndexPath == "" {
		return nil, fmt.Errorf("one of INDEX_URL or INDEX_PATH is required")
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("CACHE_TTL must be positive")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
