package tfidf

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"rag/internal/embedding"
)

// DefaultDimension is the width of produced vectors when none is configured.
const DefaultDimension = 384

// Term is the vocabulary entry for a single token.
type Term struct {
	// Index is the token's position in the sorted vocabulary.
	Index int
	IDF   float64
}

// Vectorizer implements TF-IDF weighting projected into a fixed number of
// buckets with the hashing trick. Bucket collisions are accepted as noise.
type Vectorizer struct {
	mu         sync.RWMutex
	dimension  int
	vocabulary map[string]Term
	corpusSize int
}

// NewVectorizer creates a vectorizer with an empty vocabulary.
// A non-positive dimension falls back to DefaultDimension.
func NewVectorizer(dimension int) *Vectorizer {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Vectorizer{
		dimension:  dimension,
		vocabulary: make(map[string]Term),
	}
}

// Name returns the identifier of this embedder implementation.
func (v *Vectorizer) Name() string { return "tfidf" }

// Dimension returns the length of every produced vector.
func (v *Vectorizer) Dimension() int { return v.dimension }

// BuildVocabulary computes document frequencies over the corpus and derives
// smoothed IDF weights. The previous vocabulary is discarded.
func (v *Vectorizer) BuildVocabulary(corpus []string) {
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	vocab := make(map[string]Term, len(terms))
	for i, term := range terms {
		vocab[term] = Term{
			Index: i,
			IDF:   math.Log((n+1)/(float64(df[term])+1)) + 1,
		}
	}

	v.mu.Lock()
	v.vocabulary = vocab
	v.corpusSize = len(corpus)
	v.mu.Unlock()
}

// Fit builds a separate vectorizer over corpus, leaving v untouched.
func (v *Vectorizer) Fit(corpus []string) embedding.Embedder {
	next := NewVectorizer(v.dimension)
	next.BuildVocabulary(corpus)
	return next
}

// VocabularySize returns the number of distinct terms seen by BuildVocabulary.
func (v *Vectorizer) VocabularySize() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vocabulary)
}

// IDF returns the weight applied to term, including the unseen-term fallback.
func (v *Vectorizer) IDF(term string) float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.idfLocked(term)
}

func (v *Vectorizer) idfLocked(term string) float64 {
	if t, ok := v.vocabulary[term]; ok {
		return t.IDF
	}
	return math.Log(float64(v.corpusSize) + 2)
}

// Embed computes the hashed TF-IDF vector for text, L2-normalized.
// Text without tokens yields the zero vector.
func (v *Vectorizer) Embed(text string) []float64 {
	vec := make([]float64, v.dimension)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return vec
	}

	// Terms are accumulated in first-occurrence order so that floating point
	// sums are reproducible bit for bit.
	tf := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	maxFreq := 0
	for _, tok := range tokens {
		if tf[tok] == 0 {
			order = append(order, tok)
		}
		tf[tok]++
		if tf[tok] > maxFreq {
			maxFreq = tf[tok]
		}
	}

	v.mu.RLock()
	for _, term := range order {
		h := Hash(term)
		bucket := int(abs64(int64(h)) % int64(v.dimension))
		weight := float64(tf[term]) / float64(maxFreq) * v.idfLocked(term)
		vec[bucket] += sign(h) * weight
	}
	v.mu.RUnlock()

	return normalize(vec)
}

// EmbedBatch embeds each text independently.
func (v *Vectorizer) EmbedBatch(texts []string) [][]float64 {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = v.Embed(text)
	}
	return out
}

var nonWordPattern = regexp.MustCompile(`[^\w\s]`)

// Tokenize lowercases text, turns punctuation into whitespace and returns
// the remaining words longer than one character.
func Tokenize(text string) []string {
	cleaned := nonWordPattern.ReplaceAllString(strings.ToLower(text), " ")
	raw := strings.Fields(cleaned)
	out := raw[:0]
	for _, tok := range raw {
		if len(tok) > 1 {
			out = append(out, tok)
		}
	}
	return out
}

// Hash is a 32-bit polynomial string hash (h = h*31 + c) with wrapping overflow.
func Hash(s string) int32 {
	var h int32
	for _, r := range s {
		h = h*31 + int32(r)
	}
	return h
}

func sign(h int32) float64 {
	switch {
	case h > 0:
		return 1
	case h < 0:
		return -1
	}
	return 0
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

func normalize(vec []float64) []float64 {
	norm := 0.0
	for _, x := range vec {
		norm += x * x
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
