// Package sqlite serves documents stored in a SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"rag/internal/domain"
	"rag/internal/lexical"
	"rag/internal/source/memory"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Source reads documents from a table with columns id, content and metadata.
// The table is created when missing.
type Source struct {
	path  string
	table string

	mu          sync.RWMutex
	db          *sql.DB
	initialized bool
}

func New(path, table string) (*Source, error) {
	if table == "" {
		table = "documents"
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("sqlite source: invalid table name %q: %w", table, domain.ErrConfiguration)
	}
	return &Source{path: path, table: table}, nil
}

func (s *Source) Type() string { return "sqlite" }

func (s *Source) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		if dir := filepath.Dir(s.path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("sqlite source: create data directory: %w", err)
			}
		}
		db, err := sql.Open("sqlite", s.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
		if err != nil {
			return fmt.Errorf("sqlite source: open: %w", err)
		}
		s.db = db
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	metadata TEXT
)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite source: create table: %w", err)
	}
	s.initialized = true
	return nil
}

func (s *Source) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *Source) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, fmt.Errorf("sqlite source: %w", domain.ErrNotInitialized)
	}
	return s.db, nil
}

func (s *Source) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	return s.Documents(ctx)
}

func (s *Source) Documents(ctx context.Context) ([]domain.Document, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	return s.query(ctx, db, fmt.Sprintf(`SELECT id, content, metadata FROM %s ORDER BY rowid`, s.table))
}

// Search narrows candidates with LIKE on each query word, then ranks them by keyword overlap.
func (s *Source) Search(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	tokens := lexical.Tokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	var (
		conds []string
		args  []any
	)
	for t := range tokens {
		conds = append(conds, `content LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(t)+"%")
	}
	stmt := fmt.Sprintf(`SELECT id, content, metadata FROM %s WHERE %s ORDER BY rowid`, s.table, strings.Join(conds, " OR "))
	docs, err := s.query(ctx, db, stmt, args...)
	if err != nil {
		return nil, err
	}
	return lexical.Rank(query, docs, limit), nil
}

func (s *Source) query(ctx context.Context, db *sql.DB, stmt string, args ...any) ([]domain.Document, error) {
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite source: query: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			doc  domain.Document
			meta sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta); err != nil {
			return nil, fmt.Errorf("sqlite source: scan: %w", err)
		}
		if meta.Valid && meta.String != "" && meta.String != "null" {
			if err := json.Unmarshal([]byte(meta.String), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("sqlite source: metadata for %s: %w", doc.ID, err)
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite source: %w", err)
	}
	return docs, nil
}

// AddDocument inserts doc, replacing any row with the same id.
func (s *Source) AddDocument(ctx context.Context, doc domain.Document) (string, []domain.Document, error) {
	doc, err := memory.PrepareNew(doc)
	if err != nil {
		return "", nil, err
	}
	db, err := s.conn()
	if err != nil {
		return "", nil, err
	}
	var meta any
	if len(doc.Metadata) > 0 {
		data, err := json.Marshal(doc.Metadata)
		if err != nil {
			return "", nil, fmt.Errorf("sqlite source: marshal metadata: %w", err)
		}
		meta = string(data)
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (id, content, metadata) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET content = excluded.content, metadata = excluded.metadata`, s.table)
	if _, err := db.ExecContext(ctx, stmt, doc.ID, doc.Content, meta); err != nil {
		return "", nil, fmt.Errorf("sqlite source: insert: %w", err)
	}
	return doc.ID, []domain.Document{doc}, nil
}

func (s *Source) DocumentCount(ctx context.Context) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite source: count: %w", err)
	}
	return n, nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
