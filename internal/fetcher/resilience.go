package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffOptions control retry behaviour for station API calls.
type BackoffOptions struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
)

// doWithResilience executes the request with retries, exponential
// backoff, and the shared circuit breaker. Retries cover transport
// errors, 429 and 5xx; other non-2xx statuses return immediately for the
// caller to decode an API error body.
func doWithResilience(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, backoff BackoffOptions, build func() (*http.Request, error)) (*http.Response, error) {
	if backoff.InitialInterval <= 0 {
		backoff.InitialInterval = 500 * time.Millisecond
	}
	if backoff.MaxInterval <= 0 {
		backoff.MaxInterval = 5 * time.Second
	}

	interval := backoff.InitialInterval
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			}
			return resp, nil
		})
		if err == nil {
			return result.(*http.Response), nil
		}

		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) || attempt >= backoff.MaxRetries {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		interval *= 2
		if interval > backoff.MaxInterval {
			interval = backoff.MaxInterval
		}
	}

	return nil, lastErr
}
