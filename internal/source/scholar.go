// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/research-assistant/internal/budget"
	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// scholarAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var scholarAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const scholarFields = "title,abstract,externalIds,url"

// ScholarAdapter queries the Semantic Scholar Graph API.
type ScholarAdapter struct {
	biller
	client    *http.Client
	apiKey    string
	userAgent string
}

// NewScholar constructs the Semantic Scholar adapter. The API key is
// optional; without one the public rate limits apply.
func NewScholar(client *http.Client, cfg types.SourcesConfig, meter *budget.Meter) *ScholarAdapter {
	return &ScholarAdapter{
		biller:    biller{meter: meter, cost: cfg.Costs.Scholar},
		client:    client,
		apiKey:    cfg.ScholarAPIKey,
		userAgent: cfg.UserAgent,
	}
}

// Kind returns the adapter identifier.
func (a *ScholarAdapter) Kind() types.SourceKind { return types.SourceScholar }

// Cost returns the estimated per-call cost.
func (a *ScholarAdapter) Cost() float64 { return a.cost }

// Search queries the Semantic Scholar API and returns results in the
// provider's relevance order.
func (a *ScholarAdapter) Search(ctx context.Context, query string, maxResults int) ([]types.SourceResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}
	maxResults = clamp(maxResults, 10)

	params := url.Values{
		"query":  {query},
		"limit":  {fmt.Sprintf("%d", maxResults)},
		"fields": {scholarFields},
	}
	reqURL := scholarAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	if a.apiKey != "" {
		req.Header.Set("x-api-key", a.apiKey)
	}

	if err := a.charge(); err != nil {
		return nil, err
	}

	resp, err := httputil.Do(ctx, a.client, req, 0)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("Semantic Scholar API request: %v: %w", err, ErrSourceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("Semantic Scholar API", resp.StatusCode)
	}

	var sr scholarResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %v: %w", err, ErrSourceUnavailable)
	}

	total := len(sr.Data)
	var results []types.SourceResult
	for i, paper := range sr.Data {
		results = append(results, types.SourceResult{
			Kind:      types.SourceScholar,
			Title:     paper.Title,
			Locator:   paperLocator(paper),
			Excerpt:   paper.Abstract,
			Relevance: positionScore(i, total),
		})
	}
	return results, nil
}

// paperLocator picks the most durable reference for a paper: DOI, then the
// Semantic Scholar URL, then the bare paper ID.
func paperLocator(p scholarPaper) string {
	if p.ExternalIDs.DOI != "" {
		return "https://doi.org/" + p.ExternalIDs.DOI
	}
	if p.URL != "" {
		return p.URL
	}
	return p.PaperID
}

// Semantic Scholar API JSON structures.
type scholarResponse struct {
	Total  int            `json:"total"`
	Offset int            `json:"offset"`
	Data   []scholarPaper `json:"data"`
}

type scholarPaper struct {
	PaperID     string             `json:"paperId"`
	Title       string             `json:"title"`
	Abstract    string             `json:"abstract"`
	URL         string             `json:"url"`
	ExternalIDs scholarExternalIDs `json:"externalIds"`
}

type scholarExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}
