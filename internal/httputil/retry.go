// Package httputil provides HTTP helpers shared by the service clients.
package httputil

import (
	"context"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay is the first backoff applied after an HTTP 429. Tests shrink it.
var RetryBaseDelay = 2 * time.Second

const defaultMaxRetries = 3

// DoWithRetry executes req and retries on HTTP 429 with exponential backoff (base, 2×base, 4×base…).
// A Retry-After header given in seconds replaces the computed delay. Only use it for idempotent
// requests: a POST that reached the server must not be replayed.
//
// When maxRetries is 0 the default is used. After exhausting retries the last 429 response is
// returned so the caller can report it. Context cancellation during a wait returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		backoff := retryAfter(resp.Header.Get("Retry-After"))
		if backoff <= 0 {
			backoff = RetryBaseDelay << attempt
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		log.Printf("[http] %s %s rate limited, retrying in %s (attempt %d/%d)", req.Method, req.URL.Path, backoff, attempt+1, maxRetries)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func retryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
