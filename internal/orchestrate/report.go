// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// FormatAnswer writes an answer as human-readable text to w.
func FormatAnswer(ans Answer, w io.Writer) {
	rec := ans.Record

	if ans.FromMemory {
		fmt.Fprintf(w, "(recalled from session memory, similarity %.2f, cost 0)\n\n", ans.Similarity)
	}

	if rec.Summary != "" {
		fmt.Fprintln(w, rec.Summary)
		fmt.Fprintln(w)
	}

	formatResults(rec.Results, w)

	if len(rec.Skipped) > 0 {
		fmt.Fprintln(w)
		for _, sk := range rec.Skipped {
			fmt.Fprintf(w, "skipped %s: %s\n", sk.Kind, sk.Reason)
		}
	}

	fmt.Fprintf(w, "\ncost: %.1f units", rec.Cost)
	if ans.Duplicates > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", ans.Duplicates)
	}
	fmt.Fprintln(w)
}

func formatResults(results []types.SourceResult, w io.Writer) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-8s  %-50s  %-6s  %s\n",
		"Rank", "Source", "Title", "Score", "Locator")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, r := range results {
		title := r.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(w, "%-4d  %-8s  %-50s  %-6.2f  %s\n",
			i+1, r.Kind, title, r.Relevance, r.Locator)
	}
	fmt.Fprintf(w, "\n%d results\n", len(results))
}

// FormatJSON writes the answer's record as indented JSON to w.
func FormatJSON(ans Answer, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ans.Record)
}

// FormatHistory writes saved records as a compact table to w.
func FormatHistory(records []types.MemoryRecord, w io.Writer) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No history.")
		return
	}

	fmt.Fprintf(w, "%-20s  %-50s  %-8s  %-6s  %s\n",
		"When", "Query", "Results", "Cost", "Project")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, rec := range records {
		query := rec.Query.Text
		if len(query) > 50 {
			query = query[:47] + "..."
		}
		fmt.Fprintf(w, "%-20s  %-50s  %-8d  %-6.1f  %s\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"), query,
			len(rec.Results), rec.Cost, rec.Query.Project)
	}
	fmt.Fprintf(w, "\n%d records\n", len(records))
}
