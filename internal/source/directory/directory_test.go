package directory

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag/internal/chunker"
	"rag/internal/domain"
	"rag/internal/logger"
)

var _ domain.DocumentSource = (*Source)(nil)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func ids(docs []domain.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestSource_InitializeLoadsTree(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.txt":              "Machine learning is a subset of artificial intelligence.",
		"guides/b.md":        "# Paris\nParis is the capital of France.",
		"data/faq.json":      `[{"id": "faq-1", "content": "Refunds take five days."}]`,
		"data/people.csv":    "name,role\nAda,engineer\n",
		"image.png":          "not text",
		".hidden/secret.txt": "should not load",
		".dotfile.txt":       "should not load",
	})
	s := New(dir, nil, nil)

	require.NoError(t, s.Initialize(context.Background()))

	assert.True(t, s.Initialized())
	docs, err := s.Documents(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "guides/b.md", "faq-1", "data/people.csv#row-1"}, ids(docs))
	n, err := s.DocumentCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSource_InitializeMissingRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"), nil, nil)

	err := s.Initialize(context.Background())

	assert.Error(t, err)
	assert.False(t, s.Initialized())
}

func TestSource_SkipsMalformedFilesWithWarning(t *testing.T) {
	defer func() {
		logger.SetVerbose(false)
		logger.SetOutput(os.Stderr)
	}()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetVerbose(true)

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"good.txt":  "valid content",
		"bad.json":  `{"broken"`,
		"empty.txt": "   ",
	})
	s := New(dir, nil, nil)

	require.NoError(t, s.Initialize(context.Background()))

	docs, _ := s.Documents(context.Background())
	assert.Equal(t, []string{"good.txt"}, ids(docs))
	assert.Contains(t, buf.String(), "skipping bad.json")
	assert.Contains(t, buf.String(), "skipping empty.txt")
}

func TestSource_ChunksLargeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"long.txt": strings.Repeat("word ", 100),
	})
	s := New(dir, []string{".txt"}, chunker.New(chunker.WithChunkSize(100), chunker.WithOverlap(20)))

	require.NoError(t, s.Initialize(context.Background()))

	docs, _ := s.Documents(context.Background())
	require.Greater(t, len(docs), 1)
	for i, d := range docs {
		assert.True(t, strings.HasPrefix(d.ID, "long.txt#"))
		assert.Equal(t, i, d.Metadata["chunkIndex"])
		assert.Equal(t, "long.txt", d.Metadata["parentId"])
	}
}

func TestSource_ReloadReflectsChanges(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"one.txt": "first file"})
	s := New(dir, nil, nil)
	require.NoError(t, s.Initialize(ctx))

	writeFiles(t, dir, map[string]string{"two.txt": "second file"})
	require.NoError(t, os.Remove(filepath.Join(dir, "one.txt")))

	docs, err := s.LoadDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"two.txt"}, ids(docs))
	n, _ := s.DocumentCount(ctx)
	assert.Equal(t, 1, n)
}

func TestSource_AddDocumentPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(dir, nil, nil)
	require.NoError(t, s.Initialize(ctx))

	id, _, err := s.AddDocument(ctx, domain.Document{ID: "release notes/v1", Content: "Version one shipped."})
	require.NoError(t, err)
	assert.Equal(t, "release_notes_v1.txt", id)

	data, err := os.ReadFile(filepath.Join(dir, id))
	require.NoError(t, err)
	assert.Equal(t, "Version one shipped.", string(data))

	docs, err := s.LoadDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids(docs), "added document survives a reload")

	_, _, err = s.AddDocument(ctx, domain.Document{ID: "x"})
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}

func TestSource_AddDocumentReturnsChunks(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir(), nil, chunker.New(chunker.WithChunkSize(60), chunker.WithOverlap(10)))
	require.NoError(t, s.Initialize(ctx))
	long := strings.Repeat("Goroutines are cheap threads managed by the runtime. ", 5)

	id, stored, err := s.AddDocument(ctx, domain.Document{ID: "q", Content: long})
	require.NoError(t, err)

	assert.Equal(t, "q.txt", id)
	require.Greater(t, len(stored), 1)
	docs, err := s.Documents(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(docs), ids(stored), "the source holds exactly the returned chunks")
	for _, d := range stored {
		assert.True(t, strings.HasPrefix(d.ID, "q.txt#"), d.ID)
		assert.Equal(t, "q.txt", d.Metadata["parentId"])
	}

	_, short, err := s.AddDocument(ctx, domain.Document{ID: "n", Content: "Short note."})
	require.NoError(t, err)
	assert.Equal(t, []string{"n.txt"}, ids(short))
}

func TestSource_Search(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"ml.txt":    "Machine learning is a subset of artificial intelligence",
		"paris.txt": "Paris is the capital of France",
	})
	s := New(dir, nil, nil)
	require.NoError(t, s.Initialize(context.Background()))

	results, err := s.Search(context.Background(), "machine learning", 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ml.txt", results[0].ID)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden(".git"))
	assert.True(t, IsHidden(".env"))
	assert.False(t, IsHidden("notes.txt"))
	assert.False(t, IsHidden("."))
}
