package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weather_lookups_total",
		Help: "Chunk and point lookups by outcome; field is t2m, vis or other",
	}, []string{"kind", "field", "outcome"})
	LookupDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "weather_lookup_duration_ms",
		Help:    "End-to-end lookup duration in milliseconds",
		Buckets: []float64{0.5, 1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"kind"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weather_cache_hits_total",
		Help: "Response cache hits by tier",
	}, []string{"tier"})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "weather_cache_misses_total",
		Help: "Response cache misses across all tiers",
	})
	CacheEvictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weather_cache_evictions_total",
		Help: "Entries dropped from the in-memory cache",
	}, []string{"reason"})
	CoalescedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "weather_coalesced_lookups_total",
		Help: "Lookups that shared an in-flight decode",
	})
	DecodeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "weather_decode_duration_ms",
		Help:    "Chunk decompress and reshape duration in milliseconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 50, 100, 250},
	})
	SnapshotRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weather_snapshot_refresh_total",
		Help: "Snapshot rescans by status",
	}, []string{"status"})
	IndexEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "weather_index_entries",
		Help: "Cells in the loaded grid index",
	})
)

func init() {
	prometheus.MustRegister(LookupsTotal)
	prometheus.MustRegister(LookupDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheEvictionsTotal)
	prometheus.MustRegister(CoalescedTotal)
	prometheus.MustRegister(DecodeDurationMs)
	prometheus.MustRegister(SnapshotRefreshTotal)
	prometheus.MustRegister(IndexEntries)
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }
