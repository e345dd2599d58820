package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// retryPolicy bounds how long an index download keeps trying.
type retryPolicy struct {
	retries int
	base    time.Duration
	ceiling time.Duration
}

func (p retryPolicy) wait(n int) time.Duration {
	d := p.base << n
	if p.ceiling > 0 && (d > p.ceiling || d <= 0) {
		d = p.ceiling
	}
	return d
}

var (
	errIndexThrottled = errors.New("index server is throttling")
	errIndexUnhealthy = errors.New("index server error")
	errIndexRefused   = errors.New("index server refused the download")
	errIndexSuspended = errors.New("index downloads suspended after repeated failures")
)

// download GETs url and returns the open response on 2xx. Throttling, 5xx and
// transport failures are retried with exponential waits; other statuses are
// final. All attempts go through breaker.
func download(ctx context.Context, client *http.Client, breaker *gobreaker.CircuitBreaker, policy retryPolicy, url string, header http.Header) (*http.Response, error) {
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header = header.Clone()

		out, err := breaker.Execute(func() (interface{}, error) {
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}
			resp.Body.Close()
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, errIndexThrottled
			case resp.StatusCode >= 500:
				return nil, fmt.Errorf("%w: %d", errIndexUnhealthy, resp.StatusCode)
			default:
				return nil, fmt.Errorf("%w: %d", errIndexRefused, resp.StatusCode)
			}
		})
		if err == nil {
			return out.(*http.Response), nil
		}

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, fmt.Errorf("%w: %v", errIndexSuspended, err)
		case errors.Is(err, errIndexRefused):
			return nil, err
		case n >= policy.retries:
			return nil, fmt.Errorf("download index after %d attempts: %w", n+1, err)
		}

		timer := time.NewTimer(policy.wait(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
