// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package memory keeps the session's completed queries and answers
// recall by lexical similarity, so repeat questions cost nothing.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Store is an append-only in-memory record of the session's research.
// Records are never mutated; a correction is a new record whose
// SupersedesID points at the old one.
type Store struct {
	mu         sync.RWMutex
	records    []types.MemoryRecord
	vectors    []map[string]float64
	combined   []map[string]float64
	superseded map[string]bool
	threshold  float64
	related    int
}

// NewStore constructs a session memory store.
func NewStore(cfg types.MemoryConfig) *Store {
	threshold := cfg.RecallThreshold
	if threshold <= 0 {
		threshold = 0.6
	}
	related := cfg.RelatedLimit
	if related <= 0 {
		related = 3
	}
	return &Store{
		superseded: make(map[string]bool),
		threshold:  threshold,
		related:    related,
	}
}

// Remember appends a completed record. Missing ID and CreatedAt fields
// are filled in; the stored record is returned.
func (s *Store) Remember(rec types.MemoryRecord) types.MemoryRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	s.vectors = append(s.vectors, Vectorize(rec.Query.Text))
	s.combined = append(s.combined, Vectorize(rec.Query.Text+" "+rec.Summary))
	if rec.SupersedesID != "" {
		s.superseded[rec.SupersedesID] = true
	}
	return rec
}

// Recall returns the best matching prior record for a query, with its
// similarity score. Similarity is computed over the stored question and
// its summary; a record matches when it meets the configured threshold. Superseded records never match; among records
// with equal similarity the newest wins. When the query names a project,
// only records from that project are considered.
func (s *Store) Recall(q types.Query) (types.MemoryRecord, float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qv := Vectorize(q.Text)
	var (
		best      types.MemoryRecord
		bestScore float64
		found     bool
	)
	for i, rec := range s.records {
		if s.superseded[rec.ID] {
			continue
		}
		if q.Project != "" && rec.Query.Project != q.Project {
			continue
		}
		score := s.similarity(qv, i)
		if score < s.threshold {
			continue
		}
		if !found || score > bestScore || (score == bestScore && rec.CreatedAt.After(best.CreatedAt)) {
			best, bestScore, found = rec, score, true
		}
	}
	return best, bestScore, found
}

// similarity scores a query vector against stored record i. It takes the
// better of the match against the stored question alone and against the
// question plus its summary, so a query phrased like a prior answer still
// recalls it and a long summary never drowns out an exact question match.
func (s *Store) similarity(qv map[string]float64, i int) float64 {
	score := Cosine(qv, s.vectors[i])
	if c := Cosine(qv, s.combined[i]); c > score {
		score = c
	}
	return score
}

// Related returns up to the configured number of prior records that are
// similar to the query but below the recall threshold, most similar
// first. These feed the summarizer as session context.
func (s *Store) Related(q types.Query) []types.MemoryRecord {
	const floor = 0.2

	s.mu.RLock()
	defer s.mu.RUnlock()

	qv := Vectorize(q.Text)
	type scored struct {
		rec   types.MemoryRecord
		score float64
	}
	var candidates []scored
	for i, rec := range s.records {
		if s.superseded[rec.ID] {
			continue
		}
		score := s.similarity(qv, i)
		if score < floor {
			continue
		}
		candidates = append(candidates, scored{rec, score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > s.related {
		candidates = candidates[:s.related]
	}

	out := make([]types.MemoryRecord, len(candidates))
	for i, c := range candidates {
		out[i] = c.rec
	}
	return out
}

// History returns records in insertion order. A non-empty project name
// filters to that project.
func (s *Store) History(project string) []types.MemoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.MemoryRecord
	for _, rec := range s.records {
		if project != "" && rec.Query.Project != project {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// SessionStats aggregates the session's activity.
type SessionStats struct {
	Queries      int     `json:"queries" yaml:"queries"`
	TotalCost    float64 `json:"total_cost" yaml:"total_cost"`
	TotalResults int     `json:"total_results" yaml:"total_results"`
}

// Stats returns aggregate counts over all stored records.
func (s *Store) Stats() SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st SessionStats
	st.Queries = len(s.records)
	for _, rec := range s.records {
		st.TotalCost += rec.Cost
		st.TotalResults += len(rec.Results)
	}
	return st
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
