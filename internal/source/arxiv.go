// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/research-assistant/internal/budget"
	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivAdapter queries the arXiv Atom API for academic preprints.
type ArxivAdapter struct {
	biller
	client    *http.Client
	userAgent string
}

// NewArxiv constructs the arXiv adapter.
func NewArxiv(client *http.Client, cfg types.SourcesConfig, meter *budget.Meter) *ArxivAdapter {
	return &ArxivAdapter{
		biller:    biller{meter: meter, cost: cfg.Costs.Academic},
		client:    client,
		userAgent: cfg.UserAgent,
	}
}

// Kind returns the adapter identifier.
func (a *ArxivAdapter) Kind() types.SourceKind { return types.SourceAcademic }

// Cost returns the estimated per-call cost.
func (a *ArxivAdapter) Cost() float64 { return a.cost }

// Search queries the arXiv API and returns results ranked by arXiv's own
// relevance ordering.
func (a *ArxivAdapter) Search(ctx context.Context, query string, maxResults int) ([]types.SourceResult, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty arXiv query")
	}
	maxResults = clamp(maxResults, 10)

	url := fmt.Sprintf("%s?search_query=all:%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, strings.Join(terms, "+"), maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	if err := a.charge(); err != nil {
		return nil, err
	}

	resp, err := httputil.Do(ctx, a.client, req, 0)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("arXiv API request: %v: %w", err, ErrSourceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("arXiv API", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %v: %w", err, ErrSourceUnavailable)
	}

	total := len(feed.Entries)
	var results []types.SourceResult
	for i, entry := range feed.Entries {
		locator := strings.TrimSpace(entry.ID)
		if locator == "" {
			continue
		}
		results = append(results, types.SourceResult{
			Kind:      types.SourceAcademic,
			Title:     strings.Join(strings.Fields(entry.Title), " "),
			Locator:   locator,
			Excerpt:   strings.TrimSpace(entry.Summary),
			Relevance: positionScore(i, total),
		})
	}
	return results, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
}
