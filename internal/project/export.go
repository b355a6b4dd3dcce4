// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package project

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// ExportJSON writes records as an indented JSON array.
func ExportJSON(w io.Writer, records []types.MemoryRecord) error {
	if records == nil {
		records = []types.MemoryRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}

// csvHeader is the column layout for CSV export: one row per source
// result, with the owning query's fields repeated.
var csvHeader = []string{
	"query", "project", "source_kind", "title", "locator", "excerpt", "relevance", "cost", "timestamp",
}

// ExportCSV writes records flattened to one row per source result.
// Records with no results still contribute a row so the query and its
// cost are not lost.
func ExportCSV(w io.Writer, records []types.MemoryRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for _, rec := range records {
		ts := rec.CreatedAt.UTC().Format(time.RFC3339)
		cost := strconv.FormatFloat(rec.Cost, 'f', -1, 64)

		if len(rec.Results) == 0 {
			row := []string{rec.Query.Text, rec.Query.Project, "", "", "", "", "", cost, ts}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing CSV row: %w", err)
			}
			continue
		}

		for _, r := range rec.Results {
			row := []string{
				rec.Query.Text,
				rec.Query.Project,
				string(r.Kind),
				r.Title,
				r.Locator,
				r.Excerpt,
				strconv.FormatFloat(r.Relevance, 'f', 2, 64),
				cost,
				ts,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing CSV row: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
