package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	docs, err := Text("Hello there.", "notes/a.md")

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "notes/a.md", docs[0].ID)
	assert.Equal(t, "markdown", docs[0].Metadata["type"])
	assert.Equal(t, "notes/a.md", docs[0].Metadata["source"])

	_, err = Text("  \n", "empty.txt")
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestJSON(t *testing.T) {
	t.Run("array with content fields", func(t *testing.T) {
		data := []byte(`[
			{"id": "faq-1", "content": "Returns are accepted within 30 days.", "category": "policy"},
			{"text": "Shipping takes 3 days."},
			{"content": "   "}
		]`)

		docs, err := JSON(data, "faq.json")
		require.NoError(t, err)

		require.Len(t, docs, 2, "record with blank text is skipped")
		assert.Equal(t, "faq-1", docs[0].ID)
		assert.Equal(t, "Returns are accepted within 30 days.", docs[0].Content)
		assert.Equal(t, "policy", docs[0].Metadata["category"])
		assert.Equal(t, "faq.json#1", docs[1].ID)
		assert.Equal(t, "Shipping takes 3 days.", docs[1].Content)
	})

	t.Run("single object without content key", func(t *testing.T) {
		docs, err := JSON([]byte(`{"name": "Ada", "role": "engineer"}`), "person.json")

		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "name: Ada, role: engineer", docs[0].Content)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := JSON([]byte(`{"broken"`), "bad.json")
		assert.Error(t, err)
	})

	t.Run("empty array", func(t *testing.T) {
		_, err := JSON([]byte(`[]`), "none.json")
		assert.ErrorIs(t, err, ErrNoContent)
	})
}

func TestCSV(t *testing.T) {
	input := "id,question,answer\nq1,What is Go?,A language\nq2,Who made it?,Google\nq3,,\n"

	t.Run("rendered rows", func(t *testing.T) {
		docs, err := CSV(strings.NewReader(input), "faq.csv", CSVOptions{})
		require.NoError(t, err)

		require.Len(t, docs, 3)
		assert.Equal(t, "faq.csv#row-1", docs[0].ID)
		assert.Equal(t, "answer: A language, id: q1, question: What is Go?", docs[0].Content)
		assert.Equal(t, 1, docs[0].Metadata["row"])
	})

	t.Run("content and id columns", func(t *testing.T) {
		docs, err := CSV(strings.NewReader(input), "faq.csv", CSVOptions{ContentColumn: "answer", IDColumn: "id"})
		require.NoError(t, err)

		require.Len(t, docs, 2, "row with empty content is skipped")
		assert.Equal(t, "q2", docs[1].ID)
		assert.Equal(t, "Google", docs[1].Content)
		assert.Equal(t, "Who made it?", docs[1].Metadata["question"])
		_, hasID := docs[1].Metadata["id"]
		assert.False(t, hasID)
	})

	t.Run("unknown content column", func(t *testing.T) {
		_, err := CSV(strings.NewReader(input), "faq.csv", CSVOptions{ContentColumn: "missing"})
		assert.ErrorContains(t, err, "missing")
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := CSV(strings.NewReader(""), "empty.csv", CSVOptions{})
		assert.ErrorIs(t, err, ErrNoContent)
	})
}

func TestFile_DispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.txt":  "plain text",
		"b.json": `[{"content": "json text"}]`,
		"c.csv":  "body\ncsv text\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	for name, want := range map[string]string{"a.txt": "plain text", "b.json": "json text", "c.csv": "body: csv text"} {
		docs, err := File(filepath.Join(dir, name), name, CSVOptions{})
		require.NoError(t, err, name)
		require.Len(t, docs, 1, name)
		assert.Equal(t, want, docs[0].Content, name)
	}

	_, err := File(filepath.Join(dir, "missing.txt"), "missing.txt", CSVOptions{})
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(".TXT", DefaultExtensions))
	assert.True(t, Supported(".md", DefaultExtensions))
	assert.False(t, Supported(".pdf", DefaultExtensions))
}
