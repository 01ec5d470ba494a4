package domain

import (
	"context"
	"strings"
)

// Document is a unit of text known to a document source.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// Validate rejects documents that carry no text.
func (d Document) Validate() error {
	if strings.TrimSpace(d.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// VectorEntry is a document together with its cached embedding.
type VectorEntry struct {
	ID       string
	Content  string
	Metadata map[string]any
	Vector   []float64
}

// Chunk is a segment of a longer text produced during ingestion.
type Chunk struct {
	Content     string
	ChunkIndex  int
	TotalChunks int
}

// RetrievalResult is a document matched by a query with its similarity score.
type RetrievalResult struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float64
}

// Source is the caller-facing view of a retrieved document.
type Source struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// Message is one turn of a prior conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateOptions carries per-call overrides for a generator.
// Zero values mean "use the generator's configured default".
type GenerateOptions struct {
	SystemPrompt string
	Temperature  *float64
	History      []Message
}

// QueryOptions configures a single engine query.
type QueryOptions struct {
	TopK         int
	SystemPrompt string
	Temperature  *float64
	History      []Message
}

// GenerateOptions extracts the generator overrides.
func (o QueryOptions) GenerateOptions() GenerateOptions {
	return GenerateOptions{
		SystemPrompt: o.SystemPrompt,
		Temperature:  o.Temperature,
		History:      o.History,
	}
}

// QueryResponse is the answer to a query along with the documents it was built from.
type QueryResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Query   string   `json:"query"`
	// LowConfidence is set when no document cleared the similarity threshold
	// and the sources are the best candidates regardless.
	LowConfidence bool `json:"lowConfidence,omitempty"`
}

// EventType tags a streaming query event.
type EventType string

const (
	EventSources EventType = "sources"
	EventContent EventType = "content"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// StreamEvent is one element of a streaming query.
type StreamEvent struct {
	Type          EventType
	Sources       []Source
	LowConfidence bool
	Content       string
	Err           error
}

// StreamChunk is a piece of incremental generator output.
type StreamChunk struct {
	Content string
	Err     error
}

// Stats reports the engine's configuration and index size.
type Stats struct {
	Initialized         bool    `json:"initialized"`
	DocumentCount       int     `json:"documentCount"`
	TopK                int     `json:"topK"`
	SimilarityThreshold float64 `json:"similarityThreshold"`
	DataSourceType      string  `json:"dataSourceType"`
	LLMModel            string  `json:"llmModel"`
	EmbeddingDimension  int     `json:"embeddingDimension"`
}

// DocumentSource owns canonical document storage.
// Implementations exist per backing store and are selected by type tag.
type DocumentSource interface {
	Type() string
	Initialize(ctx context.Context) error
	Initialized() bool
	// LoadDocuments re-reads the backing store and returns its full contents.
	LoadDocuments(ctx context.Context) ([]Document, error)
	// Search is the source's own keyword search, used when no vectorizer is configured.
	Search(ctx context.Context, query string, limit int) ([]RetrievalResult, error)
	// AddDocument persists doc and returns its id together with the documents
	// the source now holds for it: doc itself, or the chunks derived from it.
	AddDocument(ctx context.Context, doc Document) (string, []Document, error)
	Documents(ctx context.Context) ([]Document, error)
	DocumentCount(ctx context.Context) (int, error)
	Close() error
}

// Generator produces an answer conditioned on retrieved documents.
type Generator interface {
	Model() string
	Initialize(ctx context.Context) error
	Generate(ctx context.Context, query string, docs []RetrievalResult, opts GenerateOptions) (string, error)
	// GenerateStream returns a finite, single-pass channel of output chunks.
	// The channel is closed when generation ends or ctx is cancelled.
	GenerateStream(ctx context.Context, query string, docs []RetrievalResult, opts GenerateOptions) (<-chan StreamChunk, error)
}
