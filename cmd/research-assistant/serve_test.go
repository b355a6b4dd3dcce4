// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/pdiddy/research-assistant/internal/budget"
	"github.com/pdiddy/research-assistant/internal/memory"
	"github.com/pdiddy/research-assistant/internal/orchestrate"
	"github.com/pdiddy/research-assistant/internal/project"
	"github.com/pdiddy/research-assistant/internal/source"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// cannedAdapter implements source.Adapter with fixed results, charging
// the meter like the real adapters do.
type cannedAdapter struct {
	kind    types.SourceKind
	cost    float64
	meter   *budget.Meter
	results []types.SourceResult
}

func (a *cannedAdapter) Kind() types.SourceKind { return a.kind }
func (a *cannedAdapter) Cost() float64          { return a.cost }

func (a *cannedAdapter) Search(ctx context.Context, _ string, _ int) ([]types.SourceResult, error) {
	if _, err := a.meter.Charge(a.cost); err != nil {
		return nil, err
	}
	return a.results, nil
}

func newTestApp(t *testing.T) *app {
	t.Helper()

	hist, err := project.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("project.NewStore: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	meter := budget.NewMeter(10)
	web := &cannedAdapter{kind: types.SourceWeb, cost: 2, meter: meter, results: []types.SourceResult{
		{Kind: types.SourceWeb, Title: "Cache Design", Locator: "https://example.com/caches", Excerpt: "hot data", Relevance: 1.0},
	}}

	a := &app{
		meter: meter,
		mem:   memory.NewStore(types.MemoryConfig{}),
		hist:  hist,
	}
	a.orch = orchestrate.New([]source.Adapter{web}, meter, a.mem, nil,
		types.SourcesConfig{MaxResults: 20, PerSourceResults: 10}, "", io.Discard)
	return a
}

func TestIndexPageRendersForm(t *testing.T) {
	a := newTestApp(t)

	rr := httptest.NewRecorder()
	a.handleIndex(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rr.Body.String()
	for _, want := range []string{`<form method="post" action="/"`, `name="question"`, `name="project"`, "10.0 remaining", "queries: 0"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q:\n%s", want, body)
		}
	}
}

func TestIndexPageAnswersQuestion(t *testing.T) {
	a := newTestApp(t)

	form := url.Values{"question": {"how do caches work"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	a.handleIndex(rr, req)

	body := rr.Body.String()
	for _, want := range []string{"Cache Design", "https://example.com/caches", "cost: 2.0 units", "8.0 remaining", "queries: 1"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q:\n%s", want, body)
		}
	}

	records, err := a.hist.History(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("len(records) = %d, the form's answer should be saved", len(records))
	}
}
