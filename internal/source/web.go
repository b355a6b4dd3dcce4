// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/research-assistant/internal/budget"
	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// webAPIBase is the DuckDuckGo lite endpoint. Declared as a var so tests
// can substitute an httptest server.
var webAPIBase = "https://lite.duckduckgo.com/lite/"

// WebAdapter searches the general web through DuckDuckGo's lite HTML
// interface. A token-bucket limiter keeps the request rate polite; the lite
// page is the stable one for parsing.
type WebAdapter struct {
	biller
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewWeb constructs the web adapter. qps bounds the sustained request rate;
// zero means 1 request per second.
func NewWeb(client *http.Client, cfg types.SourcesConfig, meter *budget.Meter) *WebAdapter {
	qps := cfg.WebQPS
	if qps <= 0 {
		qps = 1.0
	}
	return &WebAdapter{
		biller:    biller{meter: meter, cost: cfg.Costs.Web},
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(qps), 1),
		userAgent: cfg.UserAgent,
	}
}

// Kind returns the adapter identifier.
func (a *WebAdapter) Kind() types.SourceKind { return types.SourceWeb }

// Cost returns the estimated per-call cost.
func (a *WebAdapter) Cost() float64 { return a.cost }

// Search posts the query to the lite endpoint and scrapes result links.
func (a *WebAdapter) Search(ctx context.Context, query string, maxResults int) ([]types.SourceResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty web query")
	}
	maxResults = clamp(maxResults, 10)

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webAPIBase, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", a.userAgent)

	if err := a.charge(); err != nil {
		return nil, err
	}

	resp, err := httputil.Do(ctx, a.client, req, 0)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("web search request: %v: %w", err, ErrSourceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("web search", resp.StatusCode)
	}

	// Reads are capped at 1 MiB; the lite page is far smaller.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading web response: %v: %w", err, ErrSourceUnavailable)
	}

	return parseLiteResults(string(body), maxResults), nil
}

// Lite page structure: result links carry class "result-link" and snippets
// sit in "result-snippet" table cells.
var (
	liteLinkPattern     = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	liteLinkAltPattern  = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	liteSnippetPattern  = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([^<]+(?:<[^>]+>[^<]*</[^>]+>)*[^<]*)</td>`)
	htmlTagPattern      = regexp.MustCompile(`<[^>]+>`)
	anyAnchorPattern    = regexp.MustCompile(`<a[^>]+href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
)

// parseLiteResults extracts ranked results from the lite HTML page.
func parseLiteResults(html string, maxResults int) []types.SourceResult {
	matches := liteLinkPattern.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		matches = liteLinkAltPattern.FindAllStringSubmatch(html, -1)
	}
	snippets := liteSnippetPattern.FindAllStringSubmatch(html, -1)

	var results []types.SourceResult
	for i, m := range matches {
		if len(m) < 3 {
			continue
		}
		locator := strings.TrimSpace(m[1])
		title := decodeEntities(strings.TrimSpace(m[2]))
		if locator == "" || title == "" {
			continue
		}
		excerpt := ""
		if i < len(snippets) && len(snippets[i]) > 1 {
			excerpt = decodeEntities(htmlTagPattern.ReplaceAllString(snippets[i][1], ""))
		}
		results = append(results, types.SourceResult{
			Kind:    types.SourceWeb,
			Title:   title,
			Locator: locator,
			Excerpt: excerpt,
		})
		if len(results) >= maxResults {
			break
		}
	}

	if len(results) == 0 {
		results = fallbackAnchors(html, maxResults)
	}

	for i := range results {
		results[i].Relevance = positionScore(i, len(results))
	}
	return results
}

// fallbackAnchors scans every external anchor when the structured patterns
// find nothing, deduplicating by URL and skipping navigation links.
func fallbackAnchors(html string, maxResults int) []types.SourceResult {
	var results []types.SourceResult
	seen := make(map[string]bool)

	for _, m := range anyAnchorPattern.FindAllStringSubmatch(html, -1) {
		if len(m) < 3 {
			continue
		}
		locator := strings.TrimSpace(m[1])
		title := decodeEntities(strings.TrimSpace(m[2]))

		if strings.Contains(locator, "duckduckgo.com") ||
			strings.HasPrefix(locator, "/") ||
			strings.HasPrefix(locator, "#") ||
			strings.HasPrefix(locator, "javascript:") {
			continue
		}
		if len(title) < 5 || seen[locator] {
			continue
		}
		seen[locator] = true

		results = append(results, types.SourceResult{
			Kind:    types.SourceWeb,
			Title:   title,
			Locator: locator,
		})
		if len(results) >= maxResults {
			break
		}
	}
	return results
}

// decodeEntities resolves the handful of HTML entities the lite page emits.
func decodeEntities(s string) string {
	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return strings.TrimSpace(r.Replace(s))
}
