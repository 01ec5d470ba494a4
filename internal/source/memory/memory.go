// Package memory provides an in-process document collection and a source backed by it.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"rag/internal/domain"
	"rag/internal/lexical"
)

// Collection is an ordered, id-keyed set of documents safe for concurrent use.
// File-backed sources keep their loaded documents in one.
type Collection struct {
	mu    sync.RWMutex
	docs  []domain.Document
	index map[string]int
}

func NewCollection() *Collection {
	return &Collection{index: make(map[string]int)}
}

// Reset replaces the contents with docs. Later duplicates of an id win.
func (c *Collection) Reset(docs []domain.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = nil
	c.index = make(map[string]int, len(docs))
	for _, d := range docs {
		c.putLocked(d)
	}
}

// Put inserts doc or replaces the document with the same id.
func (c *Collection) Put(doc domain.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(doc)
}

func (c *Collection) putLocked(doc domain.Document) {
	if i, ok := c.index[doc.ID]; ok {
		c.docs[i] = doc
		return
	}
	c.index[doc.ID] = len(c.docs)
	c.docs = append(c.docs, doc)
}

// All returns a copy of the documents in insertion order.
func (c *Collection) All() []domain.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Document, len(c.docs))
	copy(out, c.docs)
	return out
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// Search ranks the documents by keyword overlap with query.
func (c *Collection) Search(query string, limit int) []domain.RetrievalResult {
	return lexical.Rank(query, c.All(), limit)
}

// PrepareNew validates doc and assigns a random id when it has none.
func PrepareNew(doc domain.Document) (domain.Document, error) {
	if err := doc.Validate(); err != nil {
		return doc, err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	return doc, nil
}

// Source keeps documents in memory only. It is seeded at construction and
// reloading returns whatever it currently holds.
type Source struct {
	seed        []domain.Document
	docs        *Collection
	mu          sync.RWMutex
	initialized bool
}

func New(seed ...domain.Document) *Source {
	return &Source{seed: seed, docs: NewCollection()}
}

func (s *Source) Type() string { return "memory" }

func (s *Source) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs.Reset(s.seed)
	s.initialized = true
	return nil
}

func (s *Source) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *Source) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	return s.docs.All(), nil
}

func (s *Source) Search(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	return s.docs.Search(query, limit), nil
}

func (s *Source) AddDocument(ctx context.Context, doc domain.Document) (string, []domain.Document, error) {
	doc, err := PrepareNew(doc)
	if err != nil {
		return "", nil, err
	}
	s.docs.Put(doc)
	return doc.ID, []domain.Document{doc}, nil
}

// Remove deletes a document by id. It reports whether the id was present.
func (s *Source) Remove(id string) bool {
	docs := s.docs.All()
	kept := docs[:0]
	found := false
	for _, d := range docs {
		if d.ID == id {
			found = true
			continue
		}
		kept = append(kept, d)
	}
	if found {
		s.docs.Reset(kept)
	}
	return found
}

func (s *Source) Documents(ctx context.Context) ([]domain.Document, error) {
	return s.docs.All(), nil
}

func (s *Source) DocumentCount(ctx context.Context) (int, error) {
	return s.docs.Len(), nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	return nil
}
