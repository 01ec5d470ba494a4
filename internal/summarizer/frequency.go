// Package summarizer picks representative sentences out of text by word frequency.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentenceRe = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
)

// Sentences splits text on terminal punctuation. A trailing fragment without
// punctuation is kept as its own sentence.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Words returns the lowercase words of s.
func Words(s string) []string {
	return wordRe.FindAllString(strings.ToLower(s), -1)
}

// Frequency ranks sentences by how often their words occur in the whole text,
// with stopwords ignored.
type Frequency struct {
	stopwords map[string]struct{}
}

func NewFrequency() *Frequency {
	return &Frequency{stopwords: defaultStopwords()}
}

// IsStopword reports whether w carries no topical weight.
func (f *Frequency) IsStopword(w string) bool {
	_, ok := f.stopwords[w]
	return ok
}

// Score returns one score per sentence. Each distinct non-stopword of query
// found in a sentence adds 1 on top of its frequency score.
func (f *Frequency) Score(sentences []string, query string) []float64 {
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, w := range Words(sent) {
			if !f.IsStopword(w) {
				freq[w]++
			}
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}

	qset := map[string]struct{}{}
	for _, w := range Words(query) {
		if !f.IsStopword(w) {
			qset[w] = struct{}{}
		}
	}

	scores := make([]float64, len(sentences))
	for i, sent := range sentences {
		words := Words(sent)
		if len(words) == 0 {
			continue
		}
		score := 0.0
		for _, w := range words {
			if v, ok := freq[w]; ok && maxF > 0 {
				score += v / maxF
			}
		}
		// long sentences would otherwise always win
		score /= math.Sqrt(float64(len(words)))

		seen := map[string]struct{}{}
		for _, w := range words {
			if _, ok := qset[w]; !ok {
				continue
			}
			if _, dup := seen[w]; !dup {
				seen[w] = struct{}{}
				score++
			}
		}
		scores[i] = score
	}
	return scores
}

// Select returns the indices of the best n sentences in their original order.
func (f *Frequency) Select(sentences []string, query string, n int) []int {
	if n <= 0 || len(sentences) == 0 {
		return nil
	}
	scores := f.Score(sentences, query)
	idx := make([]int, len(sentences))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if n > len(idx) {
		n = len(idx)
	}
	idx = idx[:n]
	sort.Ints(idx)
	return idx
}

// Summarize returns the maxSentences most representative sentences of text.
// Text without sentence punctuation is returned trimmed.
func (f *Frequency) Summarize(text string, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	var out []string
	for _, i := range f.Select(sentences, "", maxSentences) {
		out = append(out, sentences[i])
	}
	return strings.Join(out, " ")
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these",
		"those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into",
		"about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own",
		"same", "too", "very", "can", "will", "just", "don", "should", "now", "what", "which", "who", "whom",
		"how", "why", "when", "where", "do", "does", "did", "i", "you", "we", "they", "he", "she", "me", "my",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
