// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrate runs a research query through its phases: memory
// check, budgeted dispatch to source adapters, merge, and summarization.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/research-assistant/internal/budget"
	"github.com/pdiddy/research-assistant/internal/memory"
	"github.com/pdiddy/research-assistant/internal/source"
	"github.com/pdiddy/research-assistant/internal/summarize"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Phase names the stage a query is in. A query moves strictly forward;
// Aborted is terminal and only reachable when no source produced results.
type Phase string

const (
	PhaseReceived    Phase = "received"
	PhaseMemoryCheck Phase = "memory_check"
	PhaseDispatch    Phase = "dispatch"
	PhaseMerge       Phase = "merge"
	PhaseSummarize   Phase = "summarize"
	PhaseDone        Phase = "done"
	PhaseAborted     Phase = "aborted"
)

// Options adjusts how one query is answered.
type Options struct {
	// ForceRefresh dispatches to sources even when memory holds a match.
	// The new record supersedes the recalled one.
	ForceRefresh bool

	// Sources restricts dispatch to the named kinds. Empty means all
	// configured adapters.
	Sources []types.SourceKind
}

// Answer is the outcome of one query.
type Answer struct {
	// Record holds the question, merged results, summary, and cost.
	Record types.MemoryRecord

	// Phase is the terminal phase, Done or Aborted.
	Phase Phase

	// Trace lists the phases the query passed through, in order.
	Trace []Phase

	// FromMemory is true when the answer was recalled rather than
	// dispatched. Recalled answers cost nothing.
	FromMemory bool

	// Similarity is the recall similarity when FromMemory is set.
	Similarity float64

	// Duplicates counts results collapsed during merge.
	Duplicates int
}

// AllSourcesFailedError reports a query where every adapter was skipped
// or failed, so there was nothing to merge or summarize.
type AllSourcesFailedError struct {
	Reasons map[types.SourceKind]string
}

func (e *AllSourcesFailedError) Error() string {
	kinds := make([]string, 0, len(e.Reasons))
	for kind := range e.Reasons {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	var b strings.Builder
	b.WriteString("all sources failed:")
	for _, kind := range kinds {
		fmt.Fprintf(&b, " %s (%s);", kind, e.Reasons[types.SourceKind(kind)])
	}
	return strings.TrimSuffix(b.String(), ";")
}

// Orchestrator answers research queries within a session budget.
type Orchestrator struct {
	adapters   []source.Adapter
	meter      *budget.Meter
	memory     *memory.Store
	summarizer summarize.Summarizer
	fallback   *summarize.Extractive
	cfg        types.SourcesConfig
	style      string
	warn       io.Writer
}

// New constructs an orchestrator. The adapters slice must already be in
// source priority order. summarizer may be nil, in which case every
// answer is extractive.
func New(adapters []source.Adapter, meter *budget.Meter, mem *memory.Store, summarizer summarize.Summarizer, cfg types.SourcesConfig, style string, warn io.Writer) *Orchestrator {
	if warn == nil {
		warn = io.Discard
	}
	return &Orchestrator{
		adapters:   adapters,
		meter:      meter,
		memory:     mem,
		summarizer: summarizer,
		fallback:   &summarize.Extractive{},
		cfg:        cfg,
		style:      style,
		warn:       warn,
	}
}

// RemainingBudget returns the unspent budget units.
func (o *Orchestrator) RemainingBudget() float64 {
	return o.meter.Remaining()
}

// SpentBudget returns the consumed budget units.
func (o *Orchestrator) SpentBudget() float64 {
	return o.meter.Spent()
}

// Answer runs one query to completion. The returned record has been
// stored in session memory unless the query aborted.
func (o *Orchestrator) Answer(ctx context.Context, q types.Query, opts Options) (Answer, error) {
	trace := []Phase{PhaseReceived}
	if strings.TrimSpace(q.Text) == "" {
		return Answer{Phase: PhaseAborted, Trace: append(trace, PhaseAborted)}, fmt.Errorf("empty query")
	}
	if q.Timestamp.IsZero() {
		q.Timestamp = time.Now().UTC()
	}

	// Memory check. A sufficiently similar prior answer short-circuits
	// dispatch entirely and costs nothing.
	trace = append(trace, PhaseMemoryCheck)
	var supersedes string
	if prior, score, ok := o.memory.Recall(q); ok {
		if !opts.ForceRefresh {
			return Answer{
				Record:     prior,
				Phase:      PhaseDone,
				Trace:      append(trace, PhaseDone),
				FromMemory: true,
				Similarity: score,
			}, nil
		}
		supersedes = prior.ID
	}

	// Dispatch.
	trace = append(trace, PhaseDispatch)
	batches, skipped, reasons, charged := o.dispatch(ctx, q, opts)
	if ctx.Err() != nil {
		return Answer{Phase: PhaseAborted, Trace: append(trace, PhaseAborted)}, ctx.Err()
	}

	succeeded := false
	for _, b := range batches {
		if b != nil {
			succeeded = true
			break
		}
	}
	if !succeeded {
		return Answer{Phase: PhaseAborted, Trace: append(trace, PhaseAborted)}, &AllSourcesFailedError{Reasons: reasons}
	}

	// Merge.
	trace = append(trace, PhaseMerge)
	merged, removed := Merge(batches, o.cfg.MaxResults)

	rec := types.MemoryRecord{
		Query:        q,
		Results:      merged,
		Skipped:      skipped,
		SupersedesID: supersedes,
	}

	// Summarize. A summarizer failure degrades to the extractive
	// fallback rather than failing the query.
	if len(merged) > 0 {
		trace = append(trace, PhaseSummarize)
		req := summarize.Request{
			Question: q.Text,
			Style:    o.style,
			Results:  merged,
			Prior:    o.memory.Related(q),
		}
		rec.Summary = o.summarizeWithFallback(ctx, req)
	}

	rec.Cost = charged

	rec = o.memory.Remember(rec)
	return Answer{
		Record:     rec,
		Phase:      PhaseDone,
		Trace:      append(trace, PhaseDone),
		Duplicates: removed,
	}, nil
}

// dispatch fans the query out to eligible adapters concurrently. The
// returned batches align with o.adapters; a nil batch means the adapter
// was skipped or failed, with the reason in reasons (and in skipped for
// the record). A batch from a successful adapter with zero hits is
// non-nil and empty. charged sums this query's own spend, which the
// shared meter cannot report when other queries charge it concurrently.
func (o *Orchestrator) dispatch(ctx context.Context, q types.Query, opts Options) ([][]types.SourceResult, []types.SkippedSource, map[types.SourceKind]string, float64) {
	batches := make([][]types.SourceResult, len(o.adapters))
	reasons := make(map[types.SourceKind]string)
	var skipped []types.SkippedSource
	var charged float64

	var wg sync.WaitGroup
	var mu sync.Mutex

	// Pre-check runs in priority order against the budget remaining at
	// dispatch start minus the cost of adapters already dispatched, so
	// the skip decisions are deterministic even though the charges land
	// concurrently. The meter stays authoritative: if a pre-check is
	// ever wrong, the adapter's own charge fails the same way.
	available := o.meter.Remaining()
	committed := 0.0

	for i, a := range o.adapters {
		if !kindSelected(a.Kind(), opts.Sources) {
			continue
		}

		if a.Cost() > available-committed {
			mu.Lock()
			skipped = append(skipped, types.SkippedSource{Kind: a.Kind(), Reason: "budget"})
			reasons[a.Kind()] = "budget"
			mu.Unlock()
			continue
		}
		committed += a.Cost()

		wg.Add(1)
		go func(i int, a source.Adapter) {
			defer wg.Done()

			actx := ctx
			if o.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
				defer cancel()
			}

			results, err := a.Search(actx, q.Text, o.cfg.PerSourceResults)
			mu.Lock()
			defer mu.Unlock()
			// Adapters charge immediately before their billable request,
			// so every outcome except a budget refusal has been paid for.
			if err == nil || !errors.Is(err, budget.ErrBudgetExceeded) {
				charged += a.Cost()
			}
			if err != nil {
				fmt.Fprintf(o.warn, "warning: source %s failed: %v\n", a.Kind(), err)
				skipped = append(skipped, types.SkippedSource{Kind: a.Kind(), Reason: skipReason(err)})
				reasons[a.Kind()] = err.Error()
				return
			}
			if results == nil {
				results = []types.SourceResult{}
			}
			batches[i] = results
		}(i, a)
	}
	wg.Wait()

	// Stable marker order regardless of goroutine completion order.
	sort.SliceStable(skipped, func(i, j int) bool {
		return priorityIndex(skipped[i].Kind) < priorityIndex(skipped[j].Kind)
	})
	return batches, skipped, reasons, charged
}

func (o *Orchestrator) summarizeWithFallback(ctx context.Context, req summarize.Request) string {
	if o.summarizer != nil {
		text, err := o.summarizer.Summarize(ctx, req)
		if err == nil {
			return text
		}
		fmt.Fprintf(o.warn, "warning: summarizer failed, falling back to excerpts: %v\n", err)
	}
	text, err := o.fallback.Summarize(ctx, req)
	if err != nil {
		return ""
	}
	return text
}

func kindSelected(kind types.SourceKind, selected []types.SourceKind) bool {
	if len(selected) == 0 {
		return true
	}
	for _, s := range selected {
		if s == kind {
			return true
		}
	}
	return false
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, budget.ErrBudgetExceeded):
		return "budget"
	case errors.Is(err, source.ErrRateLimited):
		return "rate limited"
	default:
		return "unavailable"
	}
}

func priorityIndex(kind types.SourceKind) int {
	for i, k := range types.SourcePriority {
		if k == kind {
			return i
		}
	}
	return len(types.SourcePriority)
}
