// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"sort"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Merge combines per-adapter result batches into one ranked list. The
// batches must be ordered by source priority; duplicates that share a
// locator collapse into the entry with the higher relevance, and ties
// keep first appearance, so the output is deterministic for a given
// input regardless of which goroutine finished first.
func Merge(batches [][]types.SourceResult, maxResults int) ([]types.SourceResult, int) {
	seen := make(map[string]int) // locator → index in merged
	var merged []types.SourceResult
	removed := 0

	for _, batch := range batches {
		for _, r := range batch {
			if r.Locator == "" {
				continue
			}
			if idx, ok := seen[r.Locator]; ok {
				mergeInto(&merged[idx], r)
				removed++
				continue
			}
			seen[r.Locator] = len(merged)
			merged = append(merged, r)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Relevance > merged[j].Relevance
	})

	if maxResults > 0 && len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged, removed
}

// mergeInto fills empty fields of dst from src and keeps the higher
// relevance score.
func mergeInto(dst *types.SourceResult, src types.SourceResult) {
	if dst.Title == "" && src.Title != "" {
		dst.Title = src.Title
	}
	if dst.Excerpt == "" && src.Excerpt != "" {
		dst.Excerpt = src.Excerpt
	}
	if src.Relevance > dst.Relevance {
		dst.Relevance = src.Relevance
	}
}
