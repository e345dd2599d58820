package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/i474232898/weather-chunk-server/internal/metrics"
	"github.com/i474232898/weather-chunk-server/internal/weather"
)

const keyPrefix = "wcs:v1:"

// RedisStore shares cached results between replicas. Redis failures degrade
// to cache misses; they never fail a lookup.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// OpenRedis returns nil when addr is empty so callers can skip the tier.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func NewRedisStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, ttl: ttl, log: logger}
}

func (s *RedisStore) Get(ctx context.Context, key string) (weather.Result, bool) {
	r, _, ok := s.GetWithExpiry(ctx, key)
	return r, ok
}

// GetWithExpiry reads the value and its remaining lifetime in one round trip.
func (s *RedisStore) GetWithExpiry(ctx context.Context, key string) (weather.Result, time.Time, bool) {
	pipe := s.client.Pipeline()
	get := pipe.Get(ctx, keyPrefix+key)
	pttl := pipe.PTTL(ctx, keyPrefix+key)
	if _, err := pipe.Exec(ctx); err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("redis get failed", "key", key, "err", err)
		}
		return weather.Result{}, time.Time{}, false
	}

	remaining := pttl.Val()
	switch {
	case remaining == -1:
		// written without a ttl; treat it as fresh
		remaining = s.ttl
	case remaining <= 0:
		return weather.Result{}, time.Time{}, false
	}

	var r weather.Result
	if err := json.Unmarshal([]byte(get.Val()), &r); err != nil {
		s.log.Warn("redis value undecodable", "key", key, "err", err)
		return weather.Result{}, time.Time{}, false
	}
	metrics.CacheHitsTotal.WithLabelValues("redis").Inc()
	return r, time.Now().Add(remaining), true
}

func (s *RedisStore) Set(ctx context.Context, key string, r weather.Result) {
	s.write(ctx, key, r, s.ttl)
}

func (s *RedisStore) SetWithExpiry(ctx context.Context, key string, r weather.Result, expires time.Time) {
	if ttl := time.Until(expires); ttl > 0 {
		s.write(ctx, key, r, ttl)
	}
}

func (s *RedisStore) write(ctx context.Context, key string, r weather.Result, ttl time.Duration) {
	b, err := json.Marshal(r)
	if err != nil {
		s.log.Warn("redis value unencodable", "key", key, "err", err)
		return
	}
	if err := s.client.Set(ctx, keyPrefix+key, b, ttl).Err(); err != nil {
		s.log.Warn("redis set failed", "key", key, "err", err)
	}
}

// Ping checks connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
