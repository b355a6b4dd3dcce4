// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize turns merged source results into an answer text.
// The AI-backed summarizer is optional; the extractive one needs no
// credentials and is the fallback when the AI call fails.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Request carries everything a summarizer needs for one answer.
type Request struct {
	// Question is the user's research question.
	Question string

	// Style selects the register: brief, comprehensive, or technical.
	Style string

	// Results are the merged source results in rank order.
	Results []types.SourceResult

	// Prior holds related records from earlier in the session, newest
	// similarity first. May be empty.
	Prior []types.MemoryRecord
}

// Summarizer produces an answer text from source results.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// Extractive is the zero-dependency summarizer: it stitches the top
// excerpts together with their sources.
type Extractive struct {
	// MaxExcerpts bounds how many results contribute. Zero means 5.
	MaxExcerpts int
}

// Summarize builds an extractive answer from the top-ranked excerpts.
func (e *Extractive) Summarize(_ context.Context, req Request) (string, error) {
	if len(req.Results) == 0 {
		return "", fmt.Errorf("no results to summarize")
	}

	limit := e.MaxExcerpts
	if limit <= 0 {
		limit = 5
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Findings for: %s\n\n", req.Question)
	for i, r := range req.Results {
		if i >= limit {
			break
		}
		excerpt := strings.TrimSpace(r.Excerpt)
		if excerpt == "" {
			excerpt = r.Title
		}
		fmt.Fprintf(&b, "- %s (%s, %s)\n", excerpt, r.Kind, r.Locator)
	}
	return strings.TrimSpace(b.String()), nil
}

// Prompt renders a request as the instruction text sent to an AI model.
// Shared by AI summarizer implementations.
func Prompt(req Request) string {
	var b strings.Builder

	b.WriteString("You are a research assistant. Answer the question using only the sources below.\n")
	switch req.Style {
	case "brief":
		b.WriteString("Answer in at most three sentences.\n")
	case "technical":
		b.WriteString("Answer for an expert reader; keep terminology precise and cite sources inline.\n")
	default:
		b.WriteString("Write a thorough answer of a few paragraphs, citing sources inline.\n")
	}

	if len(req.Prior) > 0 {
		b.WriteString("\nEarlier findings from this session:\n")
		for _, rec := range req.Prior {
			fmt.Fprintf(&b, "- Q: %s\n  A: %s\n", rec.Query.Text, firstLine(rec.Summary))
		}
	}

	b.WriteString("\nSources:\n")
	for i, r := range req.Results {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, r.Title, r.Locator, strings.TrimSpace(r.Excerpt))
	}

	fmt.Fprintf(&b, "Question: %s\n", req.Question)
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
