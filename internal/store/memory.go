package store

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/i474232898/weather-chunk-server/internal/metrics"
	"github.com/i474232898/weather-chunk-server/internal/weather"
)

type entry struct {
	key     string
	result  weather.Result
	expires time.Time
}

// MemoryStore is a concurrency-safe in-memory response cache. Entries expire
// after ttl and the least recently used entry is evicted once capacity is
// reached.
type MemoryStore struct {
	mu sync.Mutex

	// key: cache key, value: element holding *entry; front is most recent
	items map[string]*list.Element
	order *list.List

	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a new MemoryStore.
// If capacity is <= 0, it is treated as unlimited.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the cached result for key if it has not expired.
func (s *MemoryStore) Get(ctx context.Context, key string) (weather.Result, bool) {
	r, _, ok := s.GetWithExpiry(ctx, key)
	return r, ok
}

// GetWithExpiry is Get that also reports when the entry stops being served.
func (s *MemoryStore) GetWithExpiry(_ context.Context, key string) (weather.Result, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return weather.Result{}, time.Time{}, false
	}
	e := el.Value.(*entry)
	if !s.now().Before(e.expires) {
		s.remove(el)
		metrics.CacheEvictionsTotal.WithLabelValues("expired").Inc()
		return weather.Result{}, time.Time{}, false
	}
	s.order.MoveToFront(el)
	metrics.CacheHitsTotal.WithLabelValues("memory").Inc()
	return e.result, e.expires, true
}

// Set stores r under key for the store's ttl and enforces the capacity limit.
func (s *MemoryStore) Set(ctx context.Context, key string, r weather.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(key, r, s.now().Add(s.ttl))
}

// SetWithExpiry stores r until expires. Entries copied from another tier use
// it so they never outlive the original.
func (s *MemoryStore) SetWithExpiry(_ context.Context, key string, r weather.Result, expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.now().Before(expires) {
		return
	}
	s.put(key, r, expires)
}

func (s *MemoryStore) put(key string, r weather.Result, expires time.Time) {
	if el, ok := s.items[key]; ok {
		e := el.Value.(*entry)
		e.result, e.expires = r, expires
		s.order.MoveToFront(el)
		return
	}

	s.items[key] = s.order.PushFront(&entry{key: key, result: r, expires: expires})

	for s.capacity > 0 && s.order.Len() > s.capacity {
		s.remove(s.order.Back())
		metrics.CacheEvictionsTotal.WithLabelValues("capacity").Inc()
	}
}

// Purge drops every expired entry and returns how many were removed.
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for el := s.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry).expires) {
			s.remove(el)
			removed++
		}
		el = prev
	}
	if removed > 0 {
		metrics.CacheEvictionsTotal.WithLabelValues("expired").Add(float64(removed))
	}
	return removed
}

// Len returns the number of entries held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *MemoryStore) remove(el *list.Element) {
	s.order.Remove(el)
	delete(s.items, el.Value.(*entry).key)
}
