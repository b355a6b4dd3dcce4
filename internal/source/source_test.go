// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/research-assistant/internal/budget"
	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

func init() {
	httputil.RateLimitBaseDelay = 1 * time.Millisecond
	httputil.TransientBaseDelay = 1 * time.Millisecond
}

func testCfg() types.SourcesConfig {
	return types.SourcesConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   10 * time.Second,
			UserAgent: "test/0.1",
		},
		MaxResults:       20,
		PerSourceResults: 10,
		WebQPS:           1000, // no throttling in tests
		Costs: types.CostTable{
			Web:      2,
			Academic: 2,
			Scholar:  1,
			Local:    0,
		},
	}
}

// --- shared helpers ---

func TestPositionScore(t *testing.T) {
	tests := []struct {
		i, total int
		want     float64
	}{
		{0, 1, 1.0},
		{0, 10, 1.0},
		{9, 10, 0.1},
		{0, 0, 1.0},
	}
	for _, tt := range tests {
		if got := positionScore(tt.i, tt.total); got != tt.want {
			t.Errorf("positionScore(%d, %d) = %f, want %f", tt.i, tt.total, got, tt.want)
		}
	}
}

func TestStatusErrorClassification(t *testing.T) {
	if !errors.Is(statusError("x", http.StatusTooManyRequests), ErrRateLimited) {
		t.Error("429 should classify as ErrRateLimited")
	}
	if !errors.Is(statusError("x", http.StatusInternalServerError), ErrSourceUnavailable) {
		t.Error("500 should classify as ErrSourceUnavailable")
	}
	if !errors.Is(statusError("x", http.StatusUnauthorized), ErrSourceUnavailable) {
		t.Error("401 should classify as ErrSourceUnavailable")
	}
}

// --- arXiv adapter ---

const sampleArxivXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v1</id>
    <title>Attention Is All You Need</title>
    <summary>We propose a new architecture based solely on attention mechanisms.</summary>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1810.04805v2</id>
    <title>BERT: Pre-training of Deep Bidirectional Transformers</title>
    <summary>We introduce BERT.</summary>
  </entry>
</feed>`

func TestArxivSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, sampleArxivXML)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	meter := budget.NewMeter(10)
	a := NewArxiv(ts.Client(), testCfg(), meter)

	results, err := a.Search(context.Background(), "attention", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	r := results[0]
	if r.Kind != types.SourceAcademic {
		t.Errorf("Kind = %q, want academic", r.Kind)
	}
	if r.Title != "Attention Is All You Need" {
		t.Errorf("Title = %q", r.Title)
	}
	if r.Locator != "http://arxiv.org/abs/1706.03762v1" {
		t.Errorf("Locator = %q", r.Locator)
	}
	if r.Relevance != 1.0 {
		t.Errorf("Relevance = %f, want 1.0", r.Relevance)
	}
	if results[1].Relevance >= r.Relevance {
		t.Error("results should be scored in descending order")
	}

	// One call costs 2 academic units.
	if meter.Spent() != 2 {
		t.Errorf("Spent = %f, want 2", meter.Spent())
	}
}

func TestArxivEmptyQuery(t *testing.T) {
	a := NewArxiv(http.DefaultClient, testCfg(), budget.NewMeter(10))
	if _, err := a.Search(context.Background(), "   ", 10); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestArxivChargesBeforeFailedResponse(t *testing.T) {
	// A 500 after the billable request was sent must still be paid for.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	meter := budget.NewMeter(10)
	a := NewArxiv(ts.Client(), testCfg(), meter)

	_, err := a.Search(context.Background(), "attention", 10)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
	if meter.Spent() != 2 {
		t.Errorf("Spent = %f, want 2 (charge precedes the request)", meter.Spent())
	}
}

func TestArxivRateLimitedAfterRetries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	a := NewArxiv(ts.Client(), testCfg(), budget.NewMeter(10))
	_, err := a.Search(context.Background(), "attention", 10)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestArxivBudgetExhausted(t *testing.T) {
	meter := budget.NewMeter(1) // academic costs 2
	a := NewArxiv(http.DefaultClient, testCfg(), meter)

	_, err := a.Search(context.Background(), "attention", 10)
	if !errors.Is(err, budget.ErrBudgetExceeded) {
		t.Errorf("err = %v, want ErrBudgetExceeded", err)
	}
	if meter.Spent() != 0 {
		t.Errorf("Spent = %f, want 0 (no request sent)", meter.Spent())
	}
}

// --- Semantic Scholar adapter ---

const sampleScholarJSON = `{
  "total": 2,
  "offset": 0,
  "data": [
    {
      "paperId": "abc123",
      "title": "Attention Is All You Need",
      "abstract": "We propose a new architecture.",
      "url": "https://www.semanticscholar.org/paper/abc123",
      "externalIds": {"ArXiv": "1706.03762", "DOI": "10.5555/3295222.3295349"}
    },
    {
      "paperId": "def456",
      "title": "GPT-4 Technical Report",
      "abstract": "We report the development of GPT-4.",
      "url": "https://www.semanticscholar.org/paper/def456",
      "externalIds": {}
    }
  ]
}`

func TestScholarSearch(t *testing.T) {
	var gotKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sampleScholarJSON)
	}))
	defer ts.Close()

	old := scholarAPIBase
	scholarAPIBase = ts.URL
	defer func() { scholarAPIBase = old }()

	cfg := testCfg()
	cfg.ScholarAPIKey = "sk_test"
	meter := budget.NewMeter(10)
	a := NewScholar(ts.Client(), cfg, meter)

	results, err := a.Search(context.Background(), "attention", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if gotKey != "sk_test" {
		t.Errorf("x-api-key = %q, want sk_test", gotKey)
	}

	// First result has a DOI: locator should be the DOI URL.
	if results[0].Locator != "https://doi.org/10.5555/3295222.3295349" {
		t.Errorf("Locator = %q, want DOI URL", results[0].Locator)
	}
	// Second has no DOI: falls back to the paper URL.
	if results[1].Locator != "https://www.semanticscholar.org/paper/def456" {
		t.Errorf("Locator = %q, want paper URL", results[1].Locator)
	}
	if results[0].Kind != types.SourceScholar {
		t.Errorf("Kind = %q, want scholar", results[0].Kind)
	}
	if meter.Spent() != 1 {
		t.Errorf("Spent = %f, want 1", meter.Spent())
	}
}

func TestPaperLocatorFallsBackToID(t *testing.T) {
	p := scholarPaper{PaperID: "xyz"}
	if got := paperLocator(p); got != "xyz" {
		t.Errorf("paperLocator = %q, want xyz", got)
	}
}

// --- web adapter ---

const sampleLiteHTML = `<html><body><table>
<tr><td><a rel="nofollow" class='result-link' href="https://example.com/caching">Database Caching Explained</a></td></tr>
<tr><td class='result-snippet'>Caching improves database <b>throughput</b> by serving hot reads.</td></tr>
<tr><td><a rel="nofollow" class='result-link' href="https://example.org/redis">Redis as a Cache</a></td></tr>
<tr><td class='result-snippet'>Redis is commonly deployed as a look-aside cache.</td></tr>
</table></body></html>`

func TestWebSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostFormValue("q") == "" {
			t.Error("expected form-encoded query")
		}
		fmt.Fprint(w, sampleLiteHTML)
	}))
	defer ts.Close()

	old := webAPIBase
	webAPIBase = ts.URL
	defer func() { webAPIBase = old }()

	meter := budget.NewMeter(10)
	a := NewWeb(ts.Client(), testCfg(), meter)

	results, err := a.Search(context.Background(), "database caching", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	r := results[0]
	if r.Kind != types.SourceWeb {
		t.Errorf("Kind = %q, want web", r.Kind)
	}
	if r.Title != "Database Caching Explained" {
		t.Errorf("Title = %q", r.Title)
	}
	if r.Locator != "https://example.com/caching" {
		t.Errorf("Locator = %q", r.Locator)
	}
	if !strings.Contains(r.Excerpt, "throughput") {
		t.Errorf("Excerpt = %q, should contain snippet text", r.Excerpt)
	}
	if strings.Contains(r.Excerpt, "<b>") {
		t.Errorf("Excerpt = %q, tags should be stripped", r.Excerpt)
	}
	if meter.Spent() != 2 {
		t.Errorf("Spent = %f, want 2", meter.Spent())
	}
}

func TestParseLiteResultsFallback(t *testing.T) {
	html := `<html><body>
<a href="/internal">Internal Nav Link</a>
<a href="https://duckduckgo.com/about">About</a>
<a href="https://example.com/page">A Real External Result</a>
<a href="https://example.com/page">A Real External Result</a>
</body></html>`

	results := parseLiteResults(html, 10)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1 (dedup + internal links skipped)", len(results))
	}
	if results[0].Locator != "https://example.com/page" {
		t.Errorf("Locator = %q", results[0].Locator)
	}
}

func TestDecodeEntities(t *testing.T) {
	got := decodeEntities("Tom &amp; Jerry &#39;24  ")
	if got != "Tom & Jerry '24" {
		t.Errorf("decodeEntities = %q", got)
	}
}

// --- local adapter ---

type stubDocs struct {
	results []types.SourceResult
	err     error
}

func (s *stubDocs) Search(_ context.Context, _ string, _ int) ([]types.SourceResult, error) {
	return s.results, s.err
}

func TestLocalSearch(t *testing.T) {
	docs := &stubDocs{results: []types.SourceResult{
		{Kind: types.SourceLocal, Title: "notes.txt", Locator: "doc://notes.txt#0", Relevance: 1.0},
	}}
	meter := budget.NewMeter(10)
	a := NewLocal(docs, testCfg(), meter)

	results, err := a.Search(context.Background(), "caching", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	// Local lookups are free.
	if meter.Spent() != 0 {
		t.Errorf("Spent = %f, want 0", meter.Spent())
	}
}

func TestLocalSearchError(t *testing.T) {
	docs := &stubDocs{err: fmt.Errorf("index closed")}
	a := NewLocal(docs, testCfg(), budget.NewMeter(10))

	_, err := a.Search(context.Background(), "caching", 10)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}
