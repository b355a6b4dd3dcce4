// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/research-assistant/internal/budget"
	"github.com/pdiddy/research-assistant/internal/memory"
	"github.com/pdiddy/research-assistant/internal/source"
	"github.com/pdiddy/research-assistant/internal/summarize"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// stubAdapter implements source.Adapter with canned behavior. Like the
// real adapters it charges the meter before "calling" its provider.
type stubAdapter struct {
	kind    types.SourceKind
	cost    float64
	meter   *budget.Meter
	results []types.SourceResult
	err     error
	delay   time.Duration
	calls   int32
}

func (a *stubAdapter) Kind() types.SourceKind { return a.kind }
func (a *stubAdapter) Cost() float64          { return a.cost }

func (a *stubAdapter) Search(ctx context.Context, _ string, _ int) ([]types.SourceResult, error) {
	atomic.AddInt32(&a.calls, 1)
	if _, err := a.meter.Charge(a.cost); err != nil {
		return nil, err
	}
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.results, nil
}

func webResult(locator string, relevance float64) types.SourceResult {
	return types.SourceResult{Kind: types.SourceWeb, Title: "t", Locator: locator, Relevance: relevance}
}

func testOrchestrator(meter *budget.Meter, adapters []source.Adapter, warn *bytes.Buffer) *Orchestrator {
	mem := memory.NewStore(types.MemoryConfig{})
	cfg := types.SourcesConfig{MaxResults: 20, PerSourceResults: 10}
	var w *bytes.Buffer
	if warn != nil {
		w = warn
	} else {
		w = &bytes.Buffer{}
	}
	return New(adapters, meter, mem, nil, cfg, "", w)
}

func TestAnswerHappyPath(t *testing.T) {
	meter := budget.NewMeter(10)
	web := &stubAdapter{kind: types.SourceWeb, cost: 2, meter: meter, results: []types.SourceResult{
		webResult("https://example.com/a", 1.0),
	}}
	academic := &stubAdapter{kind: types.SourceAcademic, cost: 2, meter: meter, results: []types.SourceResult{
		{Kind: types.SourceAcademic, Title: "paper", Locator: "http://arxiv.org/abs/1", Excerpt: "ex", Relevance: 0.9},
	}}

	o := testOrchestrator(meter, []source.Adapter{web, academic}, nil)
	ans, err := o.Answer(context.Background(), types.Query{Text: "how do caches work"}, Options{})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if ans.Phase != PhaseDone {
		t.Errorf("Phase = %q", ans.Phase)
	}
	if len(ans.Record.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(ans.Record.Results))
	}
	if ans.Record.Results[0].Relevance < ans.Record.Results[1].Relevance {
		t.Error("results not sorted by relevance")
	}
	if ans.Record.Cost != 4 {
		t.Errorf("Cost = %f, want 4", ans.Record.Cost)
	}
	if ans.Record.Summary == "" {
		t.Error("expected an extractive summary")
	}
	if ans.Record.ID == "" {
		t.Error("record should be remembered with an ID")
	}

	want := []Phase{PhaseReceived, PhaseMemoryCheck, PhaseDispatch, PhaseMerge, PhaseSummarize, PhaseDone}
	if len(ans.Trace) != len(want) {
		t.Fatalf("Trace = %v, want %v", ans.Trace, want)
	}
	for i, p := range want {
		if ans.Trace[i] != p {
			t.Errorf("Trace[%d] = %q, want %q", i, ans.Trace[i], p)
		}
	}
}

func TestBudgetSkipsInPriorityOrder(t *testing.T) {
	// Ceiling 3 with costs web=2, academic=2, scholar=1, local=0:
	// web fits (2 left: 1), academic cannot fit, scholar fits, local fits.
	meter := budget.NewMeter(3)
	web := &stubAdapter{kind: types.SourceWeb, cost: 2, meter: meter, results: []types.SourceResult{webResult("https://w", 1.0)}}
	academic := &stubAdapter{kind: types.SourceAcademic, cost: 2, meter: meter}
	scholar := &stubAdapter{kind: types.SourceScholar, cost: 1, meter: meter, results: []types.SourceResult{
		{Kind: types.SourceScholar, Locator: "https://doi.org/1", Relevance: 0.5},
	}}
	local := &stubAdapter{kind: types.SourceLocal, cost: 0, meter: meter, results: []types.SourceResult{
		{Kind: types.SourceLocal, Locator: "doc://n#0", Relevance: 0.4},
	}}

	o := testOrchestrator(meter, []source.Adapter{web, academic, scholar, local}, nil)
	ans, err := o.Answer(context.Background(), types.Query{Text: "budget scenario"}, Options{})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if academic.calls != 0 {
		t.Error("academic adapter should never be called")
	}
	if len(ans.Record.Skipped) != 1 {
		t.Fatalf("Skipped = %+v, want one marker", ans.Record.Skipped)
	}
	if sk := ans.Record.Skipped[0]; sk.Kind != types.SourceAcademic || sk.Reason != "budget" {
		t.Errorf("Skipped[0] = %+v", sk)
	}
	if meter.Spent() != 3 {
		t.Errorf("Spent = %f, want 3", meter.Spent())
	}
	if len(ans.Record.Results) != 3 {
		t.Errorf("len(Results) = %d, want 3", len(ans.Record.Results))
	}
	if ans.Record.Cost != 3 {
		t.Errorf("Cost = %f, want 3", ans.Record.Cost)
	}
}

func TestPartialFailureIsolated(t *testing.T) {
	meter := budget.NewMeter(10)
	web := &stubAdapter{kind: types.SourceWeb, cost: 2, meter: meter,
		err: fmt.Errorf("status 500: %w", source.ErrSourceUnavailable)}
	academic := &stubAdapter{kind: types.SourceAcademic, cost: 2, meter: meter, results: []types.SourceResult{
		{Kind: types.SourceAcademic, Locator: "http://arxiv.org/abs/1", Relevance: 0.9},
	}}

	var warn bytes.Buffer
	o := testOrchestrator(meter, []source.Adapter{web, academic}, &warn)
	ans, err := o.Answer(context.Background(), types.Query{Text: "partial failure"}, Options{})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if len(ans.Record.Results) != 1 {
		t.Fatalf("len(Results) = %d, want the surviving source's hit", len(ans.Record.Results))
	}
	if !strings.Contains(warn.String(), "warning: source web failed") {
		t.Errorf("warning missing: %q", warn.String())
	}
	if len(ans.Record.Skipped) != 1 || ans.Record.Skipped[0].Reason != "unavailable" {
		t.Errorf("Skipped = %+v", ans.Record.Skipped)
	}
	// The failed call still charged: it failed after the request was paid for.
	if ans.Record.Cost != 4 {
		t.Errorf("Cost = %f, want 4", ans.Record.Cost)
	}
}

func TestCancellationKeepsCharges(t *testing.T) {
	meter := budget.NewMeter(10)
	web := &stubAdapter{kind: types.SourceWeb, cost: 2, meter: meter, delay: 5 * time.Second,
		results: []types.SourceResult{webResult("https://w", 1.0)}}

	o := testOrchestrator(meter, []source.Adapter{web}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	ans, err := o.Answer(ctx, types.Query{Text: "abandoned mid flight"}, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if ans.Phase != PhaseAborted {
		t.Errorf("Phase = %q, want aborted", ans.Phase)
	}
	// The adapter paid for its request before the caller cancelled;
	// that charge is not refunded.
	if meter.Spent() != 2 {
		t.Errorf("Spent = %f, want 2", meter.Spent())
	}
	if o.memory.Len() != 0 {
		t.Error("cancelled query must not be remembered")
	}
}

func TestSlowAdapterTimesOut(t *testing.T) {
	meter := budget.NewMeter(10)
	slow := &stubAdapter{kind: types.SourceWeb, cost: 2, meter: meter, delay: 500 * time.Millisecond,
		results: []types.SourceResult{webResult("https://w", 1.0)}}
	fast := &stubAdapter{kind: types.SourceAcademic, cost: 2, meter: meter, results: []types.SourceResult{
		{Kind: types.SourceAcademic, Locator: "http://arxiv.org/abs/1", Relevance: 0.9},
	}}

	mem := memory.NewStore(types.MemoryConfig{})
	cfg := types.SourcesConfig{
		HTTPConfig:       types.HTTPConfig{Timeout: 30 * time.Millisecond},
		MaxResults:       20,
		PerSourceResults: 10,
	}
	o := New([]source.Adapter{slow, fast}, meter, mem, nil, cfg, "", &bytes.Buffer{})

	ans, err := o.Answer(context.Background(), types.Query{Text: "one source hangs"}, Options{})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Phase != PhaseDone {
		t.Errorf("Phase = %q, the fast source should carry the query", ans.Phase)
	}
	if len(ans.Record.Results) != 1 || ans.Record.Results[0].Kind != types.SourceAcademic {
		t.Errorf("Results = %+v, want the fast source's hit", ans.Record.Results)
	}
	if len(ans.Record.Skipped) != 1 || ans.Record.Skipped[0].Kind != types.SourceWeb ||
		ans.Record.Skipped[0].Reason != "unavailable" {
		t.Errorf("Skipped = %+v, want web marked unavailable", ans.Record.Skipped)
	}
	// The timed-out adapter had already paid for its request.
	if ans.Record.Cost != 4 {
		t.Errorf("Cost = %f, want 4", ans.Record.Cost)
	}
}

func TestConcurrentQueriesAttributeOwnCost(t *testing.T) {
	meter := budget.NewMeter(20)
	web := &stubAdapter{kind: types.SourceWeb, cost: 2, meter: meter, delay: 50 * time.Millisecond,
		results: []types.SourceResult{webResult("https://w", 1.0)}}
	academic := &stubAdapter{kind: types.SourceAcademic, cost: 2, meter: meter, delay: 50 * time.Millisecond,
		results: []types.SourceResult{
			{Kind: types.SourceAcademic, Locator: "http://arxiv.org/abs/1", Relevance: 0.9},
		}}

	o := testOrchestrator(meter, []source.Adapter{web, academic}, nil)

	// Two overlapping queries share the meter; each record must carry
	// only its own spend, not the other query's.
	questions := []string{"kernel scheduler design", "ocean current modeling"}
	answers := make([]Answer, len(questions))
	var wg sync.WaitGroup
	for i, text := range questions {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			ans, err := o.Answer(context.Background(), types.Query{Text: text}, Options{})
			if err != nil {
				t.Errorf("Answer(%q): %v", text, err)
				return
			}
			answers[i] = ans
		}(i, text)
	}
	wg.Wait()

	for i, ans := range answers {
		if ans.Record.Cost != 4 {
			t.Errorf("answers[%d].Record.Cost = %f, want 4", i, ans.Record.Cost)
		}
	}
	if meter.Spent() != 8 {
		t.Errorf("Spent = %f, want 8", meter.Spent())
	}
}

func TestAllSourcesFailedAborts(t *testing.T) {
	meter := budget.NewMeter(10)
	web := &stubAdapter{kind: types.SourceWeb, cost: 2, meter: meter,
		err: fmt.Errorf("status 429: %w", source.ErrRateLimited)}
	academic := &stubAdapter{kind: types.SourceAcademic, cost: 2, meter: meter,
		err: fmt.Errorf("status 503: %w", source.ErrSourceUnavailable)}

	o := testOrchestrator(meter, []source.Adapter{web, academic}, nil)
	ans, err := o.Answer(context.Background(), types.Query{Text: "nothing works"}, Options{})

	var all *AllSourcesFailedError
	if !errors.As(err, &all) {
		t.Fatalf("err = %v, want AllSourcesFailedError", err)
	}
	if ans.Phase != PhaseAborted {
		t.Errorf("Phase = %q, want aborted", ans.Phase)
	}
	if len(all.Reasons) != 2 {
		t.Errorf("Reasons = %+v", all.Reasons)
	}
	// Nothing is remembered for an aborted query.
	if o.memory.Len() != 0 {
		t.Error("aborted query must not be remembered")
	}
}

func TestEmptyResultsIsNotFailure(t *testing.T) {
	meter := budget.NewMeter(10)
	web := &stubAdapter{kind: types.SourceWeb, cost: 2, meter: meter, results: nil}

	o := testOrchestrator(meter, []source.Adapter{web}, nil)
	ans, err := o.Answer(context.Background(), types.Query{Text: "obscure question"}, Options{})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Phase != PhaseDone {
		t.Errorf("Phase = %q, a successful empty search completes normally", ans.Phase)
	}
	if len(ans.Record.Results) != 0 {
		t.Errorf("Results = %+v", ans.Record.Results)
	}
}

func TestRecallShortCircuits(t *testing.T) {
	meter := budget.NewMeter(10)
	web := &stubAdapter{kind: types.SourceWeb, cost: 2, meter: meter, results: []types.SourceResult{
		webResult("https://example.com/a", 1.0),
	}}

	o := testOrchestrator(meter, []source.Adapter{web}, nil)
	ctx := context.Background()

	first, err := o.Answer(ctx, types.Query{Text: "impact of caching on database throughput"}, Options{})
	if err != nil {
		t.Fatalf("first Answer: %v", err)
	}

	second, err := o.Answer(ctx, types.Query{Text: "caching effect on DB throughput"}, Options{})
	if err != nil {
		t.Fatalf("second Answer: %v", err)
	}
	if !second.FromMemory {
		t.Fatal("paraphrased repeat should come from memory")
	}
	if second.Record.ID != first.Record.ID {
		t.Error("recall should return the stored record")
	}
	if second.Similarity < 0.6 {
		t.Errorf("Similarity = %f", second.Similarity)
	}
	if web.calls != 1 {
		t.Errorf("adapter called %d times, recall must not dispatch", web.calls)
	}
	if meter.Spent() != 2 {
		t.Errorf("Spent = %f, recall must not charge", meter.Spent())
	}
}

func TestForceRefreshSupersedes(t *testing.T) {
	meter := budget.NewMeter(10)
	web := &stubAdapter{kind: types.SourceWeb, cost: 2, meter: meter, results: []types.SourceResult{
		webResult("https://example.com/a", 1.0),
	}}

	o := testOrchestrator(meter, []source.Adapter{web}, nil)
	ctx := context.Background()
	q := types.Query{Text: "go scheduler preemption"}

	first, err := o.Answer(ctx, q, Options{})
	if err != nil {
		t.Fatalf("first Answer: %v", err)
	}
	refreshed, err := o.Answer(ctx, q, Options{ForceRefresh: true})
	if err != nil {
		t.Fatalf("refresh Answer: %v", err)
	}

	if refreshed.FromMemory {
		t.Error("force refresh must dispatch")
	}
	if refreshed.Record.SupersedesID != first.Record.ID {
		t.Errorf("SupersedesID = %q, want %q", refreshed.Record.SupersedesID, first.Record.ID)
	}
	if web.calls != 2 {
		t.Errorf("adapter called %d times, want 2", web.calls)
	}

	// Subsequent recall returns the refreshed record, not the superseded one.
	again, err := o.Answer(ctx, q, Options{})
	if err != nil {
		t.Fatalf("third Answer: %v", err)
	}
	if !again.FromMemory || again.Record.ID != refreshed.Record.ID {
		t.Errorf("recalled %q, want refreshed record %q", again.Record.ID, refreshed.Record.ID)
	}
}

func TestSourceFilter(t *testing.T) {
	meter := budget.NewMeter(10)
	web := &stubAdapter{kind: types.SourceWeb, cost: 2, meter: meter, results: []types.SourceResult{webResult("https://w", 1.0)}}
	academic := &stubAdapter{kind: types.SourceAcademic, cost: 2, meter: meter, results: []types.SourceResult{
		{Kind: types.SourceAcademic, Locator: "http://arxiv.org/abs/1", Relevance: 0.9},
	}}

	o := testOrchestrator(meter, []source.Adapter{web, academic}, nil)
	ans, err := o.Answer(context.Background(), types.Query{Text: "filtered"},
		Options{Sources: []types.SourceKind{types.SourceAcademic}})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if web.calls != 0 {
		t.Error("filtered-out adapter was called")
	}
	if len(ans.Record.Results) != 1 || ans.Record.Results[0].Kind != types.SourceAcademic {
		t.Errorf("Results = %+v", ans.Record.Results)
	}
}

func TestSummarizerFailureFallsBack(t *testing.T) {
	meter := budget.NewMeter(10)
	web := &stubAdapter{kind: types.SourceWeb, cost: 2, meter: meter, results: []types.SourceResult{
		{Kind: types.SourceWeb, Title: "Cache Design", Locator: "https://w", Excerpt: "hot data", Relevance: 1.0},
	}}

	var warn bytes.Buffer
	mem := memory.NewStore(types.MemoryConfig{})
	o := New([]source.Adapter{web}, meter, mem, failingSummarizer{},
		types.SourcesConfig{MaxResults: 20, PerSourceResults: 10}, "", &warn)

	ans, err := o.Answer(context.Background(), types.Query{Text: "caches"}, Options{})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(ans.Record.Summary, "hot data") {
		t.Errorf("fallback summary missing excerpt: %q", ans.Record.Summary)
	}
	if !strings.Contains(warn.String(), "summarizer failed") {
		t.Errorf("warning missing: %q", warn.String())
	}
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, summarize.Request) (string, error) {
	return "", fmt.Errorf("model overloaded")
}

func TestEmptyQueryRejected(t *testing.T) {
	o := testOrchestrator(budget.NewMeter(10), nil, nil)
	if _, err := o.Answer(context.Background(), types.Query{Text: "  "}, Options{}); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestMergeDedupKeepsHigherScore(t *testing.T) {
	batches := [][]types.SourceResult{
		{{Kind: types.SourceWeb, Locator: "https://x", Relevance: 0.7}},
		{{Kind: types.SourceAcademic, Locator: "https://x", Relevance: 0.9, Excerpt: "abstract"}},
	}
	merged, removed := Merge(batches, 0)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if len(merged) != 1 {
		t.Fatalf("len(merged) = %d, want 1", len(merged))
	}
	if merged[0].Relevance != 0.9 {
		t.Errorf("Relevance = %f, want the higher score", merged[0].Relevance)
	}
	// First appearance keeps its kind; missing fields are filled in.
	if merged[0].Kind != types.SourceWeb {
		t.Errorf("Kind = %q, want web", merged[0].Kind)
	}
	if merged[0].Excerpt != "abstract" {
		t.Errorf("Excerpt = %q", merged[0].Excerpt)
	}
}

func TestMergeDeterministicTieBreak(t *testing.T) {
	batches := [][]types.SourceResult{
		{{Kind: types.SourceWeb, Locator: "https://w", Relevance: 0.5}},
		{{Kind: types.SourceAcademic, Locator: "http://a", Relevance: 0.5}},
		{{Kind: types.SourceScholar, Locator: "https://s", Relevance: 0.5}},
	}
	merged, _ := Merge(batches, 0)
	want := []types.SourceKind{types.SourceWeb, types.SourceAcademic, types.SourceScholar}
	for i, kind := range want {
		if merged[i].Kind != kind {
			t.Fatalf("merged[%d].Kind = %q, want %q (priority tie-break)", i, merged[i].Kind, kind)
		}
	}
}

func TestMergeIdempotent(t *testing.T) {
	batches := [][]types.SourceResult{
		{webResult("https://a", 0.9), webResult("https://b", 0.4)},
		{{Kind: types.SourceAcademic, Locator: "https://a", Relevance: 0.7}},
	}
	once, _ := Merge(batches, 10)
	twice, _ := Merge([][]types.SourceResult{once}, 10)
	if len(once) != len(twice) {
		t.Fatalf("merge not idempotent: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("result %d changed on re-merge: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestMergeTruncates(t *testing.T) {
	var batch []types.SourceResult
	for i := 0; i < 30; i++ {
		batch = append(batch, webResult(fmt.Sprintf("https://example.com/%d", i), float64(i)/30))
	}
	merged, _ := Merge([][]types.SourceResult{batch}, 20)
	if len(merged) != 20 {
		t.Errorf("len(merged) = %d, want 20", len(merged))
	}
}

func TestFormatAnswer(t *testing.T) {
	ans := Answer{
		Phase: PhaseDone,
		Record: types.MemoryRecord{
			Query:   types.Query{Text: "q"},
			Summary: "the summary text",
			Results: []types.SourceResult{
				{Kind: types.SourceWeb, Title: "Hit", Locator: "https://w", Relevance: 1.0},
			},
			Skipped: []types.SkippedSource{{Kind: types.SourceAcademic, Reason: "budget"}},
			Cost:    2,
		},
	}

	var buf bytes.Buffer
	FormatAnswer(ans, &buf)
	out := buf.String()

	for _, want := range []string{"the summary text", "https://w", "skipped academic: budget", "cost: 2.0 units"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatAnswerFromMemory(t *testing.T) {
	ans := Answer{
		Phase:      PhaseDone,
		FromMemory: true,
		Similarity: 0.82,
		Record: types.MemoryRecord{
			Summary: "recalled summary",
			Results: []types.SourceResult{{Kind: types.SourceWeb, Title: "Hit", Locator: "https://w"}},
		},
	}

	var buf bytes.Buffer
	FormatAnswer(ans, &buf)
	if !strings.Contains(buf.String(), "recalled from session memory, similarity 0.82") {
		t.Errorf("output missing recall note:\n%s", buf.String())
	}
}
