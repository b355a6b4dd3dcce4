// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package memory

import (
	"math"
	"strings"
	"unicode"
)

// stopwords excluded from similarity vectors. Short function words carry
// no topical signal and would inflate similarity between unrelated queries.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "how": true, "in": true,
	"is": true, "it": true, "of": true, "on": true, "or": true, "that": true,
	"the": true, "to": true, "what": true, "when": true, "which": true,
	"with": true, "why": true, "does": true, "do": true, "can": true,
}

// abbreviations folds common short forms onto their expansions so that
// "DB throughput" and "database throughput" vectorize identically.
var abbreviations = map[string]string{
	"db":   "database",
	"dbs":  "databases",
	"doc":  "document",
	"docs": "documents",
	"perf": "performance",
}

// Vectorize builds a term-frequency vector from free text. Terms are
// lowercased, stripped of punctuation, stopword-filtered, and common
// abbreviations are expanded.
func Vectorize(text string) map[string]float64 {
	vec := make(map[string]float64)
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(field) < 2 || stopwords[field] {
			continue
		}
		if full, ok := abbreviations[field]; ok {
			field = full
		}
		vec[field]++
	}
	return vec
}

// Cosine computes the cosine similarity between two term-frequency
// vectors. Empty vectors score zero.
func Cosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for term, av := range a {
		normA += av * av
		if bv, ok := b[term]; ok {
			dot += av * bv
		}
	}
	for _, bv := range b {
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Similarity scores two texts directly.
func Similarity(a, b string) float64 {
	return Cosine(Vectorize(a), Vectorize(b))
}
