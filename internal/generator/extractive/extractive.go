// Package extractive answers from the retrieved documents themselves by
// quoting their most relevant sentences. It needs no model endpoint.
package extractive

import (
	"context"
	"strings"

	"rag/internal/domain"
	"rag/internal/generator/prompt"
	"rag/internal/summarizer"
)

const DefaultMaxSentences = 3

type Generator struct {
	maxSentences int
	ranker       *summarizer.Frequency
}

func New(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &Generator{maxSentences: maxSentences, ranker: summarizer.NewFrequency()}
}

func (g *Generator) Model() string { return "extractive" }

func (g *Generator) Initialize(ctx context.Context) error { return nil }

// sentences picks the answer sentences across all docs, in document order.
func (g *Generator) sentences(query string, docs []domain.RetrievalResult) []string {
	if len(docs) == 0 {
		return []string{prompt.NoContextAnswer}
	}
	var all []string
	for _, d := range docs {
		all = append(all, summarizer.Sentences(d.Content)...)
	}
	if len(all) == 0 {
		return []string{prompt.NoContextAnswer}
	}
	var out []string
	for _, i := range g.ranker.Select(all, query, g.maxSentences) {
		out = append(out, all[i])
	}
	return out
}

func (g *Generator) Generate(ctx context.Context, query string, docs []domain.RetrievalResult, opts domain.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.Join(g.sentences(query, docs), " "), nil
}

// GenerateStream emits one sentence per chunk. Joined, the chunks equal Generate's answer.
func (g *Generator) GenerateStream(ctx context.Context, query string, docs []domain.RetrievalResult, opts domain.GenerateOptions) (<-chan domain.StreamChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sentences := g.sentences(query, docs)
	ch := make(chan domain.StreamChunk)
	go func() {
		defer close(ch)
		for i, s := range sentences {
			if i > 0 {
				s = " " + s
			}
			select {
			case ch <- domain.StreamChunk{Content: s}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
