// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across source adapters.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RateLimitBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses without a Retry-After header. Tests override this to
// avoid real sleeps.
var RateLimitBaseDelay = 2 * time.Second

// TransientBaseDelay controls the base duration for backoff after transport
// failures. Tests override this to avoid real sleeps.
var TransientBaseDelay = 500 * time.Millisecond

const (
	defaultRateLimitRetries = 3

	// transientRetries bounds retries of transport-level failures before the
	// adapter gives up on this query.
	transientRetries = 2
)

// Do executes an HTTP request with two retry policies layered together:
//
//   - Transport failures (connection refused, reset, dial timeout) are
//     retried up to 2 times with backoff starting at TransientBaseDelay and
//     doubling each attempt.
//   - HTTP 429 responses are retried up to maxRateLimitRetries times,
//     honoring the Retry-After header when present and otherwise backing
//     off exponentially from RateLimitBaseDelay.
//
// When maxRateLimitRetries is 0 the default (3) is used. On each 429 the
// response body is drained and closed before sleeping. If the context is
// cancelled during a wait the function returns ctx.Err(). After exhausting
// retries the last error or 429 response is returned so the caller can
// classify it.
func Do(ctx context.Context, client *http.Client, req *http.Request, maxRateLimitRetries int) (*http.Response, error) {
	if maxRateLimitRetries <= 0 {
		maxRateLimitRetries = defaultRateLimitRetries
	}

	var transientAttempt, rateLimitAttempt int

	for {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if transientAttempt >= transientRetries {
				return nil, err
			}
			backoff := time.Duration(math.Pow(2, float64(transientAttempt))) * TransientBaseDelay
			transientAttempt++
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Exhausted rate-limit retries — return the 429 response as-is.
		if rateLimitAttempt >= maxRateLimitRetries {
			return resp, nil
		}

		delay := retryAfter(resp)
		if delay <= 0 {
			delay = time.Duration(math.Pow(2, float64(rateLimitAttempt))) * RateLimitBaseDelay
		}
		rateLimitAttempt++

		// Drain and close the body before retrying.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// retryAfter parses the Retry-After header as a second count. Zero means
// the header was absent or unparseable.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
