// Package service composes a document source, a vectorizer, the vector index
// and a generator into the retrieve-then-generate query pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rag/internal/domain"
	"rag/internal/embedding"
	"rag/internal/logger"
	"rag/internal/vectorstore"
	"rag/internal/vectorstore/memory"
)

const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.3
	// PreviewLength bounds the content of a returned Source.
	PreviewLength = 200
)

// ErrClosed is returned by operations on a closed engine. It matches domain.ErrNotInitialized.
var ErrClosed = fmt.Errorf("engine closed: %w", domain.ErrNotInitialized)

// State is the engine lifecycle stage.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateRefreshing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateRefreshing:
		return "refreshing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Option func(*Engine)

// WithVectorizer enables vector retrieval. Without one, retrieval is
// delegated to the document source's own search.
func WithVectorizer(v embedding.Embedder) Option {
	return func(e *Engine) { e.vectorizer = v }
}

func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

func WithSimilarityThreshold(t float64) Option {
	return func(e *Engine) { e.threshold = t }
}

// WithIndex replaces the default in-memory vector index.
func WithIndex(idx vectorstore.Storage) Option {
	return func(e *Engine) {
		if idx != nil {
			e.index = idx
		}
	}
}

// Engine is safe for concurrent use. Refreshes are serialized with each other
// but not with queries; a query sees either the previous or the rebuilt index.
type Engine struct {
	source    domain.DocumentSource
	generator domain.Generator
	index     vectorstore.Storage

	mu    sync.RWMutex
	state State
	// vectorizer is swapped by rebuild together with the index contents.
	vectorizer embedding.Embedder
	topK       int
	threshold  float64

	refreshMu sync.Mutex
}

func New(source domain.DocumentSource, generator domain.Generator, opts ...Option) *Engine {
	e := &Engine{
		source:    source,
		generator: generator,
		index:     memory.NewStorage(),
		topK:      DefaultTopK,
		threshold: DefaultSimilarityThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Initialize prepares the source and generator and, when a vectorizer is set,
// indexes every document. It is a no-op once the engine is ready. On failure
// the engine stays uninitialized and may be initialized again.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateReady, StateRefreshing:
		e.mu.Unlock()
		return nil
	case StateClosed:
		e.mu.Unlock()
		return ErrClosed
	case StateInitializing:
		e.mu.Unlock()
		return errors.New("engine initialization already in progress")
	}
	if e.source == nil {
		e.mu.Unlock()
		return fmt.Errorf("no document source: %w", domain.ErrConfiguration)
	}
	if e.generator == nil {
		e.mu.Unlock()
		return fmt.Errorf("no generator: %w", domain.ErrConfiguration)
	}
	e.state = StateInitializing
	e.mu.Unlock()

	logger.Section("Initialize")
	err := e.initialize(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		return ErrClosed
	}
	if err != nil {
		e.state = StateUninitialized
		return err
	}
	e.state = StateReady
	return nil
}

func (e *Engine) initialize(ctx context.Context) error {
	if !e.source.Initialized() {
		if err := e.source.Initialize(ctx); err != nil {
			return domain.Upstream("initialize source", err)
		}
	}
	if err := e.generator.Initialize(ctx); err != nil {
		return domain.Upstream("initialize generator", err)
	}
	logger.Info("source %s ready, generator %s ready", e.source.Type(), e.generator.Model())
	vec := e.embedder()
	if vec == nil {
		logger.Info("no vectorizer configured; retrieval uses source search")
		return nil
	}
	if err := e.index.Init(vec.Dimension()); err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	docs, err := e.source.Documents(ctx)
	if err != nil {
		return domain.Upstream("list documents", err)
	}
	return e.rebuild(ctx, docs)
}

// rebuild fits a new vocabulary over docs and re-embeds them off to the side,
// then installs the vectorizer and the index together. On error the previous
// pair keeps serving.
func (e *Engine) rebuild(ctx context.Context, docs []domain.Document) error {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	next := e.embedder().Fit(texts)
	if err := ctx.Err(); err != nil {
		return err
	}
	vectors := next.EmbedBatch(texts)
	entries := make([]domain.VectorEntry, len(docs))
	for i, d := range docs {
		entries[i] = domain.VectorEntry{ID: d.ID, Content: d.Content, Metadata: d.Metadata, Vector: vectors[i]}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.index.Replace(entries); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	e.vectorizer = next
	logger.Info("indexed %d documents", len(entries))
	return nil
}

// embedder returns the vectorizer the index was built with.
func (e *Engine) embedder() embedding.Embedder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vectorizer
}

// Refresh reloads the source and rebuilds the index from scratch.
func (e *Engine) Refresh(ctx context.Context) error {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	e.mu.Lock()
	if err := e.readyLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.state = StateRefreshing
	e.mu.Unlock()

	logger.Section("Refresh")
	err := e.refresh(ctx)

	e.mu.Lock()
	if e.state == StateRefreshing {
		e.state = StateReady
	}
	e.mu.Unlock()
	return err
}

func (e *Engine) refresh(ctx context.Context) error {
	docs, err := e.source.LoadDocuments(ctx)
	if err != nil {
		return domain.Upstream("load documents", err)
	}
	if e.embedder() == nil {
		logger.Info("reloaded %d documents", len(docs))
		return nil
	}
	// The source now holds docs, so the index follows it even if the caller gives up.
	return e.rebuild(context.WithoutCancel(ctx), docs)
}

func (e *Engine) readyLocked() error {
	switch e.state {
	case StateReady, StateRefreshing:
		return nil
	case StateClosed:
		return ErrClosed
	default:
		return domain.ErrNotInitialized
	}
}

type settings struct {
	topK       int
	threshold  float64
	vectorizer embedding.Embedder
}

func (e *Engine) ready() (settings, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.readyLocked(); err != nil {
		return settings{}, err
	}
	return settings{topK: e.topK, threshold: e.threshold, vectorizer: e.vectorizer}, nil
}

// Retrieve returns up to topK documents for query. A non-positive topK uses the configured value.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievalResult, error) {
	results, _, err := e.retrieve(ctx, query, topK)
	return results, err
}

// retrieve also reports whether the threshold fallback supplied the results.
func (e *Engine) retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievalResult, bool, error) {
	cfg, err := e.ready()
	if err != nil {
		return nil, false, err
	}
	if topK <= 0 {
		topK = cfg.topK
	}

	if cfg.vectorizer == nil {
		results, err := e.source.Search(ctx, query, topK)
		if err != nil {
			return nil, false, domain.Upstream("search source", err)
		}
		return results, false, nil
	}

	candidates, err := e.search(query, 2*topK)
	if err != nil {
		return nil, false, err
	}
	var kept []domain.RetrievalResult
	for _, c := range candidates {
		if c.Score < cfg.threshold {
			continue
		}
		kept = append(kept, c)
		if len(kept) == topK {
			break
		}
	}
	if len(kept) == 0 && len(candidates) > 0 {
		n := min(topK, len(candidates))
		logger.Debug("retrieve: best score %.3f below threshold %.3f; returning top %d anyway",
			candidates[0].Score, cfg.threshold, n)
		return candidates[:n], true, nil
	}
	return kept, false, nil
}

// search embeds query and ranks the index under the read lock, so the
// vectorizer and the cached vectors always come from the same rebuild.
func (e *Engine) search(query string, n int) ([]domain.RetrievalResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index.Search(e.vectorizer.Embed(query), n)
}

// Query retrieves context for query and asks the generator for an answer.
func (e *Engine) Query(ctx context.Context, query string, opts domain.QueryOptions) (*domain.QueryResponse, error) {
	results, low, err := e.retrieve(ctx, query, opts.TopK)
	if err != nil {
		return nil, err
	}
	answer, err := e.generator.Generate(ctx, query, results, opts.GenerateOptions())
	if err != nil {
		return nil, domain.Upstream("generate", err)
	}
	return &domain.QueryResponse{
		Answer:        answer,
		Sources:       Sources(results),
		Query:         query,
		LowConfidence: low,
	}, nil
}

// QueryStream retrieves context, then streams a sources event, the generator's
// content events and a final done event. A generator failure mid-stream ends
// the stream with an error event instead of done. The channel is closed when
// the stream ends or ctx is cancelled.
func (e *Engine) QueryStream(ctx context.Context, query string, opts domain.QueryOptions) (<-chan domain.StreamEvent, error) {
	results, low, err := e.retrieve(ctx, query, opts.TopK)
	if err != nil {
		return nil, err
	}
	chunks, err := e.generator.GenerateStream(ctx, query, results, opts.GenerateOptions())
	if err != nil {
		return nil, domain.Upstream("generate stream", err)
	}

	out := make(chan domain.StreamEvent)
	go func() {
		defer close(out)
		send := func(ev domain.StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(domain.StreamEvent{Type: domain.EventSources, Sources: Sources(results), LowConfidence: low}) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-chunks:
				if !ok {
					send(domain.StreamEvent{Type: domain.EventDone})
					return
				}
				if chunk.Err != nil {
					send(domain.StreamEvent{Type: domain.EventError, Err: domain.Upstream("generate stream", chunk.Err)})
					return
				}
				if !send(domain.StreamEvent{Type: domain.EventContent, Content: chunk.Content}) {
					return
				}
			}
		}
	}()
	return out, nil
}

// AddDocument stores doc in the source and indexes what the source stored
// (the document or its chunks) with the current vocabulary. The vocabulary
// itself is only rebuilt by Refresh.
func (e *Engine) AddDocument(ctx context.Context, doc domain.Document) (string, error) {
	if _, err := e.ready(); err != nil {
		return "", err
	}
	if err := doc.Validate(); err != nil {
		return "", err
	}
	id, stored, err := e.source.AddDocument(ctx, doc)
	if err != nil {
		return "", domain.Upstream("add document", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vectorizer != nil {
		for _, d := range stored {
			entry := domain.VectorEntry{ID: d.ID, Content: d.Content, Metadata: d.Metadata, Vector: e.vectorizer.Embed(d.Content)}
			if err := e.index.Upsert(entry); err != nil {
				return "", fmt.Errorf("index %s: %w", d.ID, err)
			}
		}
	}
	logger.Debug("added document %s as %d entries", id, len(stored))
	return id, nil
}

// Stats reports the current configuration. The document count comes from the source.
func (e *Engine) Stats(ctx context.Context) (domain.Stats, error) {
	e.mu.RLock()
	st := domain.Stats{
		Initialized:         e.state == StateReady || e.state == StateRefreshing,
		TopK:                e.topK,
		SimilarityThreshold: e.threshold,
	}
	vec := e.vectorizer
	e.mu.RUnlock()

	if e.source != nil {
		st.DataSourceType = e.source.Type()
	}
	if e.generator != nil {
		st.LLMModel = e.generator.Model()
	}
	if vec != nil {
		st.EmbeddingDimension = vec.Dimension()
	}
	if st.Initialized {
		n, err := e.source.DocumentCount(ctx)
		if err != nil {
			return st, domain.Upstream("count documents", err)
		}
		st.DocumentCount = n
	}
	return st, nil
}

// ConfigUpdate changes retrieval settings; nil fields are left alone.
type ConfigUpdate struct {
	TopK                *int
	SimilarityThreshold *float64
}

func (e *Engine) UpdateConfig(u ConfigUpdate) error {
	if u.TopK != nil && *u.TopK <= 0 {
		return fmt.Errorf("topK must be positive, got %d: %w", *u.TopK, domain.ErrConfiguration)
	}
	if u.SimilarityThreshold != nil && (*u.SimilarityThreshold < -1 || *u.SimilarityThreshold > 1) {
		return fmt.Errorf("similarity threshold must be within [-1, 1], got %g: %w", *u.SimilarityThreshold, domain.ErrConfiguration)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if u.TopK != nil {
		e.topK = *u.TopK
	}
	if u.SimilarityThreshold != nil {
		e.threshold = *u.SimilarityThreshold
	}
	return nil
}

// Close releases the source and drops the index. Closing twice is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return nil
	}
	e.state = StateClosed
	e.mu.Unlock()

	_ = e.index.Clear()
	if e.source == nil {
		return nil
	}
	return domain.Upstream("close source", e.source.Close())
}

// Sources converts results into caller-facing previews of at most PreviewLength runes.
func Sources(results []domain.RetrievalResult) []domain.Source {
	out := make([]domain.Source, len(results))
	for i, r := range results {
		out[i] = domain.Source{ID: r.ID, Content: Preview(r.Content), Metadata: r.Metadata, Score: r.Score}
	}
	return out
}

// Preview truncates s to PreviewLength runes, appending "..." when it was cut.
func Preview(s string) string {
	runes := []rune(s)
	if len(runes) <= PreviewLength {
		return s
	}
	return string(runes[:PreviewLength]) + "..."
}
