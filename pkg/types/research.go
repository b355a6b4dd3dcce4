// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research assistant.
// Everything here is a plain struct with json and yaml tags so the export
// layer can serialize records without adapters or reflection tricks.
package types

import "time"

// SourceKind identifies one external data source category.
type SourceKind string

const (
	SourceWeb      SourceKind = "web"
	SourceAcademic SourceKind = "academic"
	SourceScholar  SourceKind = "scholar"
	SourceLocal    SourceKind = "local"
)

// SourcePriority is the fixed dispatch and tie-break order. Merge output is
// deterministic because equal-relevance results keep the order of first
// appearance among adapters queried in this order.
var SourcePriority = []SourceKind{SourceWeb, SourceAcademic, SourceScholar, SourceLocal}

// Query is a user research question. Immutable once issued.
type Query struct {
	// Text is the research question.
	Text string `json:"text" yaml:"text"`

	// Project optionally names the project this query belongs to.
	Project string `json:"project,omitempty" yaml:"project,omitempty"`

	// Timestamp is when the query was issued.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// SourceResult is one hit produced by a source adapter.
type SourceResult struct {
	// Kind identifies the adapter that produced this result.
	Kind SourceKind `json:"kind" yaml:"kind"`

	// Title is the result title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Locator is a URL or local document reference (e.g. "doc://notes.txt#3").
	Locator string `json:"locator" yaml:"locator"`

	// Excerpt is a snippet or abstract from the source.
	Excerpt string `json:"excerpt" yaml:"excerpt"`

	// Relevance is a value between 0.0 and 1.0, higher is more relevant.
	Relevance float64 `json:"relevance" yaml:"relevance"`
}

// SkippedSource marks an adapter that Dispatch did not call.
type SkippedSource struct {
	// Kind identifies the skipped adapter.
	Kind SourceKind `json:"kind" yaml:"kind"`

	// Reason explains the skip (e.g. "budget").
	Reason string `json:"reason" yaml:"reason"`
}

// MemoryRecord is one completed research query: the question, the merged
// results, the generated summary, and the cost incurred. Records are
// append-only; corrections are new records referencing the old by
// SupersedesID rather than mutations.
type MemoryRecord struct {
	// ID is a unique identifier for this record.
	ID string `json:"id" yaml:"id"`

	// Query is the question this record answers.
	Query Query `json:"query" yaml:"query"`

	// Results are the merged, deduplicated source results in rank order.
	Results []SourceResult `json:"results" yaml:"results"`

	// Summary is the generated answer text.
	Summary string `json:"summary" yaml:"summary"`

	// Cost is the number of budget units this query consumed.
	Cost float64 `json:"cost" yaml:"cost"`

	// Skipped lists adapters that were not dispatched, with reasons.
	Skipped []SkippedSource `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	// SupersedesID references an earlier record this one corrects, if any.
	SupersedesID string `json:"supersedes_id,omitempty" yaml:"supersedes_id,omitempty"`

	// CreatedAt is when the record was stored.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Project is a named grouping of MemoryRecords. Created on demand, never
// auto-deleted.
type Project struct {
	// Name is the project identifier.
	Name string `json:"name" yaml:"name"`

	// CreatedAt is when the first record was saved under this name.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
