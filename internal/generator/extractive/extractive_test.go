package extractive

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag/internal/domain"
	"rag/internal/generator/prompt"
)

var _ domain.Generator = (*Generator)(nil)

var docs = []domain.RetrievalResult{
	{ID: "1", Content: "Machine learning is a subset of artificial intelligence. It learns patterns from data.", Score: 0.8},
	{ID: "2", Content: "Paris is the capital of France. The Seine flows through Paris.", Score: 0.1},
}

func TestGenerate(t *testing.T) {
	g := New(1)

	answer, err := g.Generate(context.Background(), "What is machine learning?", docs, domain.GenerateOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Machine learning is a subset of artificial intelligence.", answer)
	assert.Equal(t, "extractive", g.Model())
	assert.NoError(t, g.Initialize(context.Background()))
}

func TestGenerate_Deterministic(t *testing.T) {
	g := New(0)
	first, err := g.Generate(context.Background(), "capital of France", docs, domain.GenerateOptions{})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := g.Generate(context.Background(), "capital of France", docs, domain.GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, DefaultMaxSentences, len(strings.SplitAfter(first, ". ")))
}

func TestGenerate_NoDocuments(t *testing.T) {
	answer, err := New(2).Generate(context.Background(), "anything", nil, domain.GenerateOptions{})

	require.NoError(t, err)
	assert.Equal(t, prompt.NoContextAnswer, answer)
}

func TestGenerateStream_MatchesGenerate(t *testing.T) {
	g := New(3)
	ctx := context.Background()
	want, err := g.Generate(ctx, "capital of France", docs, domain.GenerateOptions{})
	require.NoError(t, err)

	ch, err := g.GenerateStream(ctx, "capital of France", docs, domain.GenerateOptions{})
	require.NoError(t, err)

	var b strings.Builder
	n := 0
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		b.WriteString(chunk.Content)
		n++
	}
	assert.Equal(t, want, b.String())
	assert.Equal(t, 3, n)
}

func TestGenerateStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(3).GenerateStream(ctx, "q", docs, domain.GenerateOptions{})

	assert.ErrorIs(t, err, context.Canceled)
}
