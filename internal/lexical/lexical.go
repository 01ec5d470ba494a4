// Package lexical ranks documents by keyword overlap with a query.
// Document sources use it for their own search when no vectorizer is configured.
package lexical

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"rag/internal/domain"
)

var wordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// Tokens returns the distinct lowercase words of s.
func Tokens(s string) map[string]struct{} {
	words := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Ochiai returns |A∩B| / sqrt(|A||B|) for the token sets of query and text.
func Ochiai(query map[string]struct{}, text string) float64 {
	doc := Tokens(text)
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	inter := 0
	for t := range doc {
		if _, ok := query[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(query))*float64(len(doc)))
}

// Rank scores docs against query and returns at most limit results with a
// positive score, best first. Equal scores keep document order.
func Rank(query string, docs []domain.Document, limit int) []domain.RetrievalResult {
	qset := Tokens(query)
	results := make([]domain.RetrievalResult, 0, len(docs))
	for _, d := range docs {
		score := Ochiai(qset, d.Content)
		if score <= 0 {
			continue
		}
		results = append(results, domain.RetrievalResult{ID: d.ID, Content: d.Content, Metadata: d.Metadata, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
