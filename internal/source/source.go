// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source wraps each external data provider behind a uniform search
// capability. Adapters classify provider failures into a small taxonomy and
// charge the budget meter before issuing billable requests; they never keep
// their own spend tallies.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pdiddy/research-assistant/internal/budget"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrSourceUnavailable marks transient provider failures: network errors,
// auth failures, unexpected status codes. The adapter has already retried
// with backoff before surfacing this.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrRateLimited marks provider throttling that persisted through the
// adapter's retry-after waits.
var ErrRateLimited = errors.New("rate limited")

// Adapter searches a single external data source. An empty result slice is
// not an error. Results are ordered by the adapter's own relevance ranking,
// descending.
type Adapter interface {
	Kind() types.SourceKind

	// Cost is the estimated per-call cost in budget units, used by the
	// dispatch pre-check.
	Cost() float64

	Search(ctx context.Context, query string, maxResults int) ([]types.SourceResult, error)
}

// biller charges a fixed per-call cost against the shared meter. Adapters
// call charge immediately before sending a billable request, so partial
// failures after that point are still paid for.
type biller struct {
	meter *budget.Meter
	cost  float64
}

func (b biller) charge() error {
	if b.cost == 0 || b.meter == nil {
		return nil
	}
	if _, err := b.meter.Charge(b.cost); err != nil {
		return err
	}
	return nil
}

// statusError classifies a non-200 response into the adapter error taxonomy.
func statusError(name string, status int) error {
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%s returned HTTP %d: %w", name, status, ErrRateLimited)
	}
	return fmt.Errorf("%s returned HTTP %d: %w", name, status, ErrSourceUnavailable)
}

// positionScore assigns a relevance score in [0.1, 1.0] from a result's
// position within the provider's own ranking.
func positionScore(i, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(i)/float64(total-1)*0.9
}

// clamp limits maxResults to a sane default when unset.
func clamp(maxResults, fallback int) int {
	if maxResults <= 0 {
		return fallback
	}
	return maxResults
}
