package store

import (
	"context"
	"time"

	"github.com/i474232898/weather-chunk-server/internal/weather"
)

// ExpiringCache is a cache tier that can report and accept absolute expiry
// times, so entries keep their original deadline when copied between tiers.
type ExpiringCache interface {
	weather.Cache
	GetWithExpiry(ctx context.Context, key string) (weather.Result, time.Time, bool)
	SetWithExpiry(ctx context.Context, key string, r weather.Result, expires time.Time)
}

// Tiered checks a fast local cache before a shared one and copies shared
// hits back into the local tier for whatever lifetime they have left.
type Tiered struct {
	local  ExpiringCache
	shared ExpiringCache
}

func NewTiered(local, shared ExpiringCache) *Tiered {
	return &Tiered{local: local, shared: shared}
}

func (t *Tiered) Get(ctx context.Context, key string) (weather.Result, bool) {
	if r, ok := t.local.Get(ctx, key); ok {
		return r, true
	}
	r, expires, ok := t.shared.GetWithExpiry(ctx, key)
	if ok {
		t.local.SetWithExpiry(ctx, key, r, expires)
	}
	return r, ok
}

func (t *Tiered) Set(ctx context.Context, key string, r weather.Result) {
	t.local.Set(ctx, key, r)
	t.shared.Set(ctx, key, r)
}
