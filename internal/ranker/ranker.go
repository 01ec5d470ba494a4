// Package ranker scores document vectors against a query vector.
package ranker

import (
	"fmt"
	"sort"

	"rag/internal/domain"
)

// Candidate is a document vector eligible for ranking.
type Candidate struct {
	ID     string
	Vector []float64
}

// Scored is a ranked document id.
type Scored struct {
	ID    string
	Score float64
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Both vectors are expected to be L2-normalized, so this is their dot product.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", domain.ErrDimensionMismatch, len(a), len(b))
	}
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// FindSimilar scores every candidate against query and returns them sorted
// by descending score. Equal scores keep their input order. A non-positive
// topK returns all candidates.
func FindSimilar(query []float64, candidates []Candidate, topK int) ([]Scored, error) {
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		score, err := CosineSimilarity(query, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", c.ID, err)
		}
		scored[i] = Scored{ID: c.ID, Score: score}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}
