// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/research-assistant/internal/budget"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// DocSearcher is the slice of the document store the local adapter needs.
type DocSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]types.SourceResult, error)
}

// LocalAdapter searches the user's own document index. Local lookups are
// free by default, but the cost is still configurable so a deployment can
// price them.
type LocalAdapter struct {
	biller
	docs DocSearcher
}

// NewLocal constructs the local document adapter over a document store.
func NewLocal(docs DocSearcher, cfg types.SourcesConfig, meter *budget.Meter) *LocalAdapter {
	return &LocalAdapter{
		biller: biller{meter: meter, cost: cfg.Costs.Local},
		docs:   docs,
	}
}

// Kind returns the adapter identifier.
func (a *LocalAdapter) Kind() types.SourceKind { return types.SourceLocal }

// Cost returns the estimated per-call cost.
func (a *LocalAdapter) Cost() float64 { return a.cost }

// Search queries the document index.
func (a *LocalAdapter) Search(ctx context.Context, query string, maxResults int) ([]types.SourceResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty document query")
	}
	maxResults = clamp(maxResults, 10)

	if err := a.charge(); err != nil {
		return nil, err
	}

	results, err := a.docs.Search(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("document index: %v: %w", err, ErrSourceUnavailable)
	}
	return results, nil
}
