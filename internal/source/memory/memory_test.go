package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag/internal/domain"
)

var _ domain.DocumentSource = (*Source)(nil)

func TestCollection(t *testing.T) {
	c := NewCollection()
	c.Reset([]domain.Document{
		{ID: "a", Content: "first"},
		{ID: "b", Content: "second"},
		{ID: "a", Content: "first again"},
	})

	require.Equal(t, 2, c.Len())
	all := c.All()
	assert.Equal(t, "first again", all[0].Content)
	assert.Equal(t, "b", all[1].ID)

	c.Put(domain.Document{ID: "c", Content: "third"})
	c.Put(domain.Document{ID: "b", Content: "second edited"})
	all = c.All()
	require.Len(t, all, 3)
	assert.Equal(t, "second edited", all[1].Content)

	all[0].Content = "mutated"
	assert.Equal(t, "first again", c.All()[0].Content, "All must return a copy")
}

func TestPrepareNew(t *testing.T) {
	doc, err := PrepareNew(domain.Document{Content: "text"})
	require.NoError(t, err)
	assert.Len(t, doc.ID, 36)

	doc, err = PrepareNew(domain.Document{ID: "keep", Content: "text"})
	require.NoError(t, err)
	assert.Equal(t, "keep", doc.ID)

	_, err = PrepareNew(domain.Document{ID: "x", Content: "  "})
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}

func TestSource_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := New(
		domain.Document{ID: "1", Content: "Machine learning is a subset of artificial intelligence"},
		domain.Document{ID: "2", Content: "Paris is the capital of France"},
	)
	assert.Equal(t, "memory", s.Type())
	assert.False(t, s.Initialized())

	require.NoError(t, s.Initialize(ctx))
	assert.True(t, s.Initialized())

	n, err := s.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	id, _, err := s.AddDocument(ctx, domain.Document{Content: "Go is a programming language"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	docs, err := s.LoadDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	results, err := s.Search(ctx, "capital of france", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2", results[0].ID)

	assert.True(t, s.Remove("2"))
	assert.False(t, s.Remove("2"))
	n, _ = s.DocumentCount(ctx)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Close())
	assert.False(t, s.Initialized())
}

func TestSource_AddRejectsEmpty(t *testing.T) {
	s := New()
	require.NoError(t, s.Initialize(context.Background()))

	_, _, err := s.AddDocument(context.Background(), domain.Document{ID: "x"})

	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}
