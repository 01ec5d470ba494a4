// Package directory loads documents from a tree of files on disk.
package directory

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"rag/internal/domain"
	"rag/internal/logger"
	"rag/internal/source/loader"
	"rag/internal/source/memory"
)

// Splitter breaks an over-long document into chunk documents.
type Splitter interface {
	SplitDocument(doc domain.Document) []domain.Document
}

// Source reads every supported file below a root directory. Files that fail
// to parse are skipped with a warning rather than failing the whole load.
type Source struct {
	root        string
	extensions  []string
	splitter    Splitter
	docs        *memory.Collection
	mu          sync.RWMutex
	initialized bool
}

// New creates a directory source. A nil splitter keeps files whole;
// empty extensions fall back to loader.DefaultExtensions.
func New(root string, extensions []string, splitter Splitter) *Source {
	if len(extensions) == 0 {
		extensions = loader.DefaultExtensions
	}
	return &Source{
		root:       root,
		extensions: extensions,
		splitter:   splitter,
		docs:       memory.NewCollection(),
	}
}

func (s *Source) Type() string { return "directory" }

// Root returns the watched directory.
func (s *Source) Root() string { return s.root }

func (s *Source) Initialize(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("directory source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("directory source: %s is not a directory", s.root)
	}
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

// LoadDocuments walks the tree again and replaces the loaded documents.
func (s *Source) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("directory source: %s: %v", path, err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != s.root && IsHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !loader.Supported(filepath.Ext(path), s.extensions) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		fileDocs, err := loader.File(path, rel, loader.CSVOptions{})
		if err != nil {
			logger.Warn("directory source: skipping %s: %v", rel, err)
			return nil
		}
		docs = append(docs, s.split(fileDocs)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("directory source: walk %s: %w", s.root, err)
	}
	s.docs.Reset(docs)
	logger.Debug("directory source: loaded %d documents from %s", len(docs), s.root)
	return s.docs.All(), nil
}

func (s *Source) split(docs []domain.Document) []domain.Document {
	if s.splitter == nil {
		return docs
	}
	var out []domain.Document
	for _, d := range docs {
		out = append(out, s.splitter.SplitDocument(d)...)
	}
	return out
}

func (s *Source) Search(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	return s.docs.Search(query, limit), nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// AddDocument writes the document as a text file under the root so that it
// survives the next reload. The returned id is the file's relative path; long
// content is stored as the chunks "<id>#<n>" which are returned alongside it.
func (s *Source) AddDocument(ctx context.Context, doc domain.Document) (string, []domain.Document, error) {
	doc, err := memory.PrepareNew(doc)
	if err != nil {
		return "", nil, err
	}
	name := strings.Trim(unsafeName.ReplaceAllString(doc.ID, "_"), "._")
	if name == "" {
		return "", nil, fmt.Errorf("directory source: cannot derive a file name from id %q", doc.ID)
	}
	if !loader.Supported(filepath.Ext(name), []string{".txt", ".md"}) {
		name += ".txt"
	}
	if err := os.WriteFile(filepath.Join(s.root, name), []byte(doc.Content), 0o644); err != nil {
		return "", nil, fmt.Errorf("directory source: write %s: %w", name, err)
	}
	meta := map[string]any{"source": name, "type": "text"}
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	stored := s.split([]domain.Document{{ID: name, Content: doc.Content, Metadata: meta}})
	for _, d := range stored {
		s.docs.Put(d)
	}
	return name, stored, nil
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

// IsHidden reports dot-files and dot-directories.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
