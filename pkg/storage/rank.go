package storage

import (
	"math"
	"sort"
	"strings"
)

// BM25 constants. Standard Robertson/Sparck-Jones parameterization.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// CosineSimilarity calculates the cosine similarity between two vectors.
// Mismatched or zero-norm vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankBM25 scores the given memories against the query terms with BM25 and
// returns the matching ones sorted by score descending. Memories matching no
// term are dropped. All backends rank lexically through this helper so that
// keyword search behaves identically regardless of the SQL engine underneath.
func RankBM25(memories []*Memory, terms []string) []*Memory {
	if len(memories) == 0 || len(terms) == 0 {
		return nil
	}

	docs := make([][]string, len(memories))
	var totalLen float64
	for i, m := range memories {
		docs[i] = Tokenize(m.Content)
		totalLen += float64(len(docs[i]))
	}
	avgLen := totalLen / float64(len(memories))
	if avgLen == 0 {
		return nil
	}

	// Document frequency per query term.
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(t)
		if t != "" {
			lowered = append(lowered, t)
		}
	}
	df := make(map[string]int, len(lowered))
	for _, doc := range docs {
		seen := make(map[string]bool, len(doc))
		for _, w := range doc {
			seen[w] = true
		}
		for _, t := range lowered {
			if seen[t] {
				df[t]++
			}
		}
	}

	n := float64(len(memories))
	var ranked []*Memory
	for i, m := range memories {
		tf := make(map[string]int, len(docs[i]))
		for _, w := range docs[i] {
			tf[w]++
		}

		var score float64
		for _, t := range lowered {
			f := float64(tf[t])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[t])+0.5)/(float64(df[t])+0.5))
			docLen := float64(len(docs[i]))
			score += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
		}

		if score > 0 {
			m.Score = score
			ranked = append(ranked, m)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

// Tokenize splits text into lowercase word tokens, trimming punctuation.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:'\"()[]")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// SortByScore sorts memories by score descending and truncates to limit
// (zero limit means no truncation).
func SortByScore(memories []*Memory, limit int) []*Memory {
	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].Score > memories[j].Score
	})

	if limit > 0 && len(memories) > limit {
		return memories[:limit]
	}

	return memories
}

// MatchCategories reports how many of the query terms appear in the category
// path (case-insensitive) and whether the containment mode is satisfied.
func MatchCategories(path []string, terms []string, matchAll bool) (matched int, ok bool) {
	if len(terms) == 0 {
		return 0, false
	}

	levels := make(map[string]bool, len(path))
	for _, l := range path {
		levels[strings.ToLower(l)] = true
	}

	for _, t := range terms {
		if levels[strings.ToLower(t)] {
			matched++
		}
	}

	if matchAll {
		return matched, matched == len(terms)
	}
	return matched, matched > 0
}
