package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-chunk-server/internal/grid"
)

// HTTPSource downloads the bootstrap index from a remote URL.
type HTTPSource struct {
	url     string
	client  *http.Client
	retry   retryPolicy
	circuit *gobreaker.CircuitBreaker
}

func NewHTTPSource(client *http.Client, url string) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "grid-index",
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
	})

	return &HTTPSource{
		url:     url,
		client:  client,
		retry:   retryPolicy{retries: 4, base: 1 * time.Second, ceiling: 15 * time.Second},
		circuit: cb,
	}
}

func (s *HTTPSource) Name() string { return "http:" + s.url }

func (s *HTTPSource) Load(ctx context.Context) ([]grid.Entry, error) {
	header := http.Header{}
	header.Set("Accept", "text/csv, application/gzip")

	resp, err := download(ctx, s.client, s.circuit, s.retry, s.url, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	entries, err := ParseIndex(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode index from %s: %w", s.url, err)
	}
	return entries, nil
}
