// Package postgres serves documents stored in a Postgres table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"rag/internal/domain"
	"rag/internal/lexical"
	"rag/internal/source/memory"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Source reads documents from a table with columns id, content and a JSONB metadata column.
type Source struct {
	dsn   string
	table string

	mu          sync.RWMutex
	pool        *pgxpool.Pool
	initialized bool
}

// New creates a Postgres source. When dsn is empty it is read from dsnEnv.
func New(dsn, dsnEnv, table string) (*Source, error) {
	if dsn == "" && dsnEnv != "" {
		dsn = os.Getenv(dsnEnv)
	}
	if dsn == "" {
		return nil, fmt.Errorf("postgres source: no dsn (set %s): %w", dsnEnv, domain.ErrConfiguration)
	}
	if table == "" {
		table = "documents"
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("postgres source: invalid table name %q: %w", table, domain.ErrConfiguration)
	}
	return &Source{dsn: dsn, table: table}, nil
}

func (s *Source) Type() string { return "postgres" }

func (s *Source) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool == nil {
		pool, err := pgxpool.New(ctx, s.dsn)
		if err != nil {
			return fmt.Errorf("postgres source: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("postgres source: ping: %w", err)
		}
		s.pool = pool
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id text PRIMARY KEY,
  content text NOT NULL,
  metadata jsonb,
  created_at timestamptz NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres source: create table: %w", err)
	}
	s.initialized = true
	return nil
}

func (s *Source) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *Source) conn() (*pgxpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pool == nil {
		return nil, fmt.Errorf("postgres source: %w", domain.ErrNotInitialized)
	}
	return s.pool, nil
}

func (s *Source) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	return s.Documents(ctx)
}

func (s *Source) Documents(ctx context.Context) ([]domain.Document, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	return s.query(ctx, pool, fmt.Sprintf(`SELECT id, content, metadata FROM %s ORDER BY created_at, id`, s.table))
}

// Search narrows candidates with ILIKE on each query word, then ranks them by keyword overlap.
func (s *Source) Search(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	tokens := lexical.Tokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	patterns := make([]string, 0, len(tokens))
	for t := range tokens {
		patterns = append(patterns, "%"+escapeLike(t)+"%")
	}
	stmt := fmt.Sprintf(`SELECT id, content, metadata FROM %s WHERE content ILIKE ANY($1) ORDER BY created_at, id`, s.table)
	docs, err := s.query(ctx, pool, stmt, patterns)
	if err != nil {
		return nil, err
	}
	return lexical.Rank(query, docs, limit), nil
}

func (s *Source) query(ctx context.Context, pool *pgxpool.Pool, stmt string, args ...any) ([]domain.Document, error) {
	rows, err := pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres source: query: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			doc  domain.Document
			meta []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta); err != nil {
			return nil, fmt.Errorf("postgres source: scan: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("postgres source: metadata for %s: %w", doc.ID, err)
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres source: %w", err)
	}
	return docs, nil
}

// AddDocument upserts doc by id.
func (s *Source) AddDocument(ctx context.Context, doc domain.Document) (string, []domain.Document, error) {
	doc, err := memory.PrepareNew(doc)
	if err != nil {
		return "", nil, err
	}
	pool, err := s.conn()
	if err != nil {
		return "", nil, err
	}
	var meta []byte
	if len(doc.Metadata) > 0 {
		if meta, err = json.Marshal(doc.Metadata); err != nil {
			return "", nil, fmt.Errorf("postgres source: marshal metadata: %w", err)
		}
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (id, content, metadata) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata`, s.table)
	if _, err := pool.Exec(ctx, stmt, doc.ID, doc.Content, meta); err != nil {
		return "", nil, fmt.Errorf("postgres source: insert: %w", err)
	}
	return doc.ID, []domain.Document{doc}, nil
}

func (s *Source) DocumentCount(ctx context.Context) (int, error) {
	pool, err := s.conn()
	if err != nil {
		return 0, err
	}
	var n int
	if err := pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres source: count: %w", err)
	}
	return n, nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
