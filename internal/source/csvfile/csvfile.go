// Package csvfile serves documents from the rows of a single CSV file.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"rag/internal/domain"
	"rag/internal/source/loader"
	"rag/internal/source/memory"
)

// Source reads one document per CSV record.
type Source struct {
	path        string
	opts        loader.CSVOptions
	docs        *memory.Collection
	mu          sync.RWMutex
	initialized bool
}

func New(path string, opts loader.CSVOptions) *Source {
	return &Source{path: path, opts: opts, docs: memory.NewCollection()}
}

func (s *Source) Type() string { return "csv" }

func (s *Source) Initialize(ctx context.Context) error {
	if _, err := s.LoadDocuments(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	return nil
}

func (s *Source) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *Source) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("csv source: %w", err)
	}
	defer f.Close()
	docs, err := loader.CSV(f, s.path, s.opts)
	if err != nil && !errors.Is(err, loader.ErrNoContent) {
		return nil, fmt.Errorf("csv source: %w", err)
	}
	s.docs.Reset(docs)
	return s.docs.All(), nil
}

func (s *Source) Search(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	return s.docs.Search(query, limit), nil
}

// AddDocument appends a record. The file must have a content column configured;
// metadata keys matching other header names fill those columns.
func (s *Source) AddDocument(ctx context.Context, doc domain.Document) (string, []domain.Document, error) {
	if s.opts.ContentColumn == "" {
		return "", nil, fmt.Errorf("csv source: adding documents requires content_column: %w", domain.ErrConfiguration)
	}
	doc, err := memory.PrepareNew(doc)
	if err != nil {
		return "", nil, err
	}
	header, err := s.header()
	if err != nil {
		return "", nil, err
	}
	record := make([]string, len(header))
	for i, col := range header {
		switch col {
		case s.opts.ContentColumn:
			record[i] = doc.Content
		case s.opts.IDColumn:
			record[i] = doc.ID
		default:
			if v, ok := doc.Metadata[col]; ok {
				record[i] = fmt.Sprint(v)
			}
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("csv source: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		return "", nil, fmt.Errorf("csv source: append: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", nil, fmt.Errorf("csv source: append: %w", err)
	}
	if s.opts.IDColumn == "" {
		// Row ids are positional, so the new row's id is only known after a reload.
		docs, err := s.LoadDocuments(ctx)
		if err != nil {
			return "", nil, err
		}
		last := docs[len(docs)-1]
		return last.ID, []domain.Document{last}, nil
	}
	meta := map[string]any{"source": s.path, "type": "csv"}
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	stored := domain.Document{ID: doc.ID, Content: doc.Content, Metadata: meta}
	s.docs.Put(stored)
	return doc.ID, []domain.Document{stored}, nil
}

func (s *Source) header() ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("csv source: %w", err)
	}
	defer f.Close()
	header, err := csv.NewReader(f).Read()
	if err != nil {
		return nil, fmt.Errorf("csv source: read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, nil
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
