package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag/internal/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := New()
		assert.Equal(t, DefaultChunkSize, c.ChunkSize())
		assert.Equal(t, DefaultChunkOverlap, c.Overlap())
	})

	t.Run("custom values", func(t *testing.T) {
		c := New(WithChunkSize(500), WithOverlap(50))
		assert.Equal(t, 500, c.ChunkSize())
		assert.Equal(t, 50, c.Overlap())
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		c := New(WithChunkSize(100), WithOverlap(150))
		assert.Less(t, c.Overlap(), c.ChunkSize())
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		c := New(WithChunkSize(0), WithOverlap(-1))
		assert.Equal(t, DefaultChunkSize, c.ChunkSize())
		assert.Equal(t, DefaultChunkOverlap, c.Overlap())
	})
}

func TestSplit_Empty(t *testing.T) {
	c := New()
	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\t "))
}

func TestSplit_ShortText(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(20))

	chunks := c.Split("  A small piece of content.  ")

	require.Len(t, chunks, 1)
	assert.Equal(t, domain.Chunk{Content: "A small piece of content.", ChunkIndex: 0, TotalChunks: 1}, chunks[0])
}

// assertCovers checks that spans start at 0, end at n, strictly advance and
// leave no gap between neighbours.
func assertCovers(t *testing.T, spans [][2]int, n int) {
	t.Helper()
	require.NotEmpty(t, spans)
	assert.Equal(t, 0, spans[0][0])
	assert.Equal(t, n, spans[len(spans)-1][1])
	for i := 1; i < len(spans); i++ {
		assert.Greater(t, spans[i][0], spans[i-1][0], "start must strictly increase")
		assert.LessOrEqual(t, spans[i][0], spans[i-1][1], "gap between chunks %d and %d", i-1, i)
	}
}

func TestSplit_CoverageWithoutBoundaries(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(20))
	text := strings.Repeat("x", 250)

	spans := c.spans([]rune(text))

	assert.LessOrEqual(t, len(spans), 4)
	assertCovers(t, spans, 250)
	for i := 1; i < len(spans); i++ {
		assert.Equal(t, 20, spans[i-1][1]-spans[i][0], "overlap preserved")
	}

	chunks := c.Split(text)
	require.Len(t, chunks, len(spans))
	for i, ch := range chunks {
		assert.Equal(t, i, ch.ChunkIndex)
		assert.Equal(t, len(chunks), ch.TotalChunks)
		assert.LessOrEqual(t, len(ch.Content), 100)
	}
}

func TestSplit_PrefersSentenceBoundary(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(20))
	text := strings.Repeat("a", 70) + ". " + strings.Repeat("b", 100)

	spans := c.spans([]rune(text))
	chunks := c.Split(text)

	assertCovers(t, spans, len(text))
	assert.Equal(t, [2]int{0, 72}, spans[0])
	require.NotEmpty(t, chunks)
	assert.Equal(t, strings.Repeat("a", 70)+".", chunks[0].Content)
}

func TestSplit_PrefersNearestBoundary(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(10))
	text := strings.Repeat("a", 55) + "\n\n" + strings.Repeat("b", 20) + ". " + strings.Repeat("c", 100)

	spans := c.spans([]rune(text))

	// the sentence end at 77 is nearer to 100 than the paragraph break at 55
	assert.Equal(t, 79, spans[0][1])
	assertCovers(t, spans, len([]rune(text)))
}

func TestSplit_BoundaryTooFarBackIgnored(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(20))
	text := strings.Repeat("a", 10) + ". " + strings.Repeat("b", 200)

	spans := c.spans([]rune(text))

	assert.Equal(t, 100, spans[0][1])
	assertCovers(t, spans, len(text))
}

func TestSplit_LargeOverlapStillTerminates(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(60))
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString(strings.Repeat("w", 52))
		b.WriteString(". ")
	}
	text := b.String()

	spans := c.spans([]rune(text))

	assertCovers(t, spans, len(text))
	assert.Less(t, len(spans), len(text))
}

func TestSplit_MultibyteCharacters(t *testing.T) {
	c := New(WithChunkSize(10), WithOverlap(2))
	text := strings.Repeat("é", 25)

	chunks := c.Split(text)

	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Content)), 10)
		assert.True(t, strings.Trim(ch.Content, "é") == "", "chunk must not split runes")
	}
}

func TestSplitDocument(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(20))

	t.Run("short document passes through", func(t *testing.T) {
		doc := domain.Document{ID: "d1", Content: " hello ", Metadata: map[string]any{"k": "v"}}

		out := c.SplitDocument(doc)

		require.Len(t, out, 1)
		assert.Equal(t, "d1", out[0].ID)
		assert.Equal(t, "hello", out[0].Content)
		assert.Equal(t, "v", out[0].Metadata["k"])
	})

	t.Run("long document is split with metadata", func(t *testing.T) {
		doc := domain.Document{ID: "d2", Content: strings.Repeat("y", 250), Metadata: map[string]any{"source": "file.txt"}}

		out := c.SplitDocument(doc)

		require.Len(t, out, 3)
		for i, d := range out {
			assert.Equal(t, "d2#"+string(rune('0'+i)), d.ID)
			assert.Equal(t, "d2", d.Metadata["parentId"])
			assert.Equal(t, i, d.Metadata["chunkIndex"])
			assert.Equal(t, 3, d.Metadata["totalChunks"])
			assert.Equal(t, "file.txt", d.Metadata["source"])
		}
		_, leaked := doc.Metadata["parentId"]
		assert.False(t, leaked, "source metadata must not be mutated")
	})

	t.Run("blank document yields nothing", func(t *testing.T) {
		assert.Empty(t, c.SplitDocument(domain.Document{ID: "d3", Content: "  "}))
	})
}
