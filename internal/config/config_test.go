package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("INDEX_PATH", "/srv/index.csv.gz")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SnapshotRoot != "zarr-data/now" {
		t.Errorf("SnapshotRoot = %q", cfg.SnapshotRoot)
	}
	if cfg.CacheTTL != 300*time.Second || cfg.CacheMaxEntries != 1000 {
		t.Errorf("cache = %v/%d, want 300s/1000", cfg.CacheTTL, cfg.CacheMaxEntries)
	}
	if cfg.SnapshotRefreshInterval != 0 || cfg.IndexMaxDistance != 0 {
		t.Errorf("optional features should default off: %+v", cfg)
	}
	if cfg.Port != "8080" || cfg.Env != "dev" {
		t.Errorf("Port/Env = %q/%q", cfg.Port, cfg.Env)
	}
	if cfg.DecodeConcurrency <= 0 {
		t.Errorf("DecodeConcurrency = %d", cfg.DecodeConcurrency)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("INDEX_URL", "https://example.com/index.csv")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("CACHE_MAX_ENTRIES", "50")
	t.Setenv("INDEX_MAX_DISTANCE", "4242.5")
	t.Setenv("SNAPSHOT_REFRESH_INTERVAL", "15s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheTTL != 90*time.Second || cfg.CacheMaxEntries != 50 {
		t.Errorf("cache = %v/%d", cfg.CacheTTL, cfg.CacheMaxEntries)
	}
	if cfg.IndexMaxDistance != 4242.5 || cfg.SnapshotRefreshInterval != 15*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing index", map[string]string{}},
		{"bad duration", map[string]string{"INDEX_PATH": "x", "CACHE_TTL": "soon"}},
		{"bad integer", map[string]string{"INDEX_PATH": "x", "CACHE_MAX_ENTRIES": "many"}},
		{"negative distance", map[string]string{"INDEX_PATH": "x", "INDEX_MAX_DISTANCE": "-1"}},
		{"zero ttl", map[string]string{"INDEX_PATH": "x", "CACHE_TTL": "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("INDEX_PATH", "")
			t.Setenv("INDEX_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("Load() expected error but got none")
			}
		})
	}
}
