// Package chunker splits long texts into overlapping, boundary-aware segments.
package chunker

import (
	"fmt"
	"strings"

	"rag/internal/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters shared by neighbouring chunks.
const DefaultChunkOverlap = 200

// boundaries are the markers a chunk prefers to end after.
var boundaries = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
}

// Chunker splits text by character count, preferring natural boundaries.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

func New(opts ...Option) *Chunker {
	c := &Chunker{chunkSize: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

func (c *Chunker) ChunkSize() int { return c.chunkSize }
func (c *Chunker) Overlap() int   { return c.overlap }

// Split cuts text into chunks of at most ChunkSize characters. Text that
// already fits is returned as a single chunk. Whitespace-only pieces are dropped.
func (c *Chunker) Split(text string) []domain.Chunk {
	runes := []rune(text)
	var pieces []string
	for _, span := range c.spans(runes) {
		if piece := strings.TrimSpace(string(runes[span[0]:span[1]])); piece != "" {
			pieces = append(pieces, piece)
		}
	}
	chunks := make([]domain.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = domain.Chunk{Content: p, ChunkIndex: i, TotalChunks: len(pieces)}
	}
	return chunks
}

// spans returns the [start, end) rune windows Split cuts from runes.
func (c *Chunker) spans(runes []rune) [][2]int {
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= c.chunkSize {
		return [][2]int{{0, n}}
	}
	var out [][2]int
	start := 0
	for start < n {
		end := start + c.chunkSize
		if end < n {
			if b := c.boundaryBefore(runes, start, end); b > start {
				end = b
			}
		} else {
			end = n
		}
		out = append(out, [2]int{start, end})
		if end >= n {
			break
		}
		next := end - c.overlap
		if next <= start {
			// A boundary pulled end back past the overlap; continue without overlap.
			next = end
		}
		start = next
	}
	return out
}

// boundaryBefore finds the nearest marker ending at or before end and no more
// than chunkSize/2 characters back. It returns the index just past the marker,
// or -1 when none is found.
func (c *Chunker) boundaryBefore(runes []rune, start, end int) int {
	floor := end - c.chunkSize/2
	if floor < start {
		floor = start
	}
	best := -1
	for _, marker := range boundaries {
		for i := end - len(marker); i >= floor; i-- {
			if hasPrefixAt(runes, i, marker) {
				if after := i + len(marker); after > best {
					best = after
				}
				break
			}
		}
	}
	return best
}

func hasPrefixAt(runes []rune, i int, marker []rune) bool {
	if i < 0 || i+len(marker) > len(runes) {
		return false
	}
	for j, r := range marker {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}

// SplitDocument returns doc unchanged when it fits in one chunk, otherwise one
// derived document per chunk with ids "<id>#<n>" and chunk metadata.
func (c *Chunker) SplitDocument(doc domain.Document) []domain.Document {
	chunks := c.Split(doc.Content)
	if len(chunks) <= 1 {
		if len(chunks) == 1 {
			doc.Content = chunks[0].Content
			return []domain.Document{doc}
		}
		return nil
	}
	out := make([]domain.Document, len(chunks))
	for i, ch := range chunks {
		meta := make(map[string]any, len(doc.Metadata)+3)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		meta["parentId"] = doc.ID
		meta["chunkIndex"] = ch.ChunkIndex
		meta["totalChunks"] = ch.TotalChunks
		out[i] = domain.Document{
			ID:       fmt.Sprintf("%s#%d", doc.ID, ch.ChunkIndex),
			Content:  ch.Content,
			Metadata: meta,
		}
	}
	return out
}
