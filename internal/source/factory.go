// Package source builds the configured document source.
package source

import (
	"fmt"

	"rag/internal/chunker"
	"rag/internal/config"
	"rag/internal/domain"
	"rag/internal/source/csvfile"
	"rag/internal/source/directory"
	"rag/internal/source/loader"
	"rag/internal/source/memory"
	"rag/internal/source/postgres"
	"rag/internal/source/sqlite"
)

// Types lists the supported source type tags.
var Types = []string{"memory", "directory", "csv", "sqlite", "postgres"}

// New creates the source selected by cfg.Type. ch splits long files read by
// the directory source; it may be nil.
func New(cfg config.SourceConfig, ch *chunker.Chunker) (domain.DocumentSource, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	case "directory":
		if cfg.Directory == nil || cfg.Directory.Path == "" {
			return nil, fmt.Errorf("directory source requires source.directory.path: %w", domain.ErrConfiguration)
		}
		var splitter directory.Splitter
		if ch != nil {
			splitter = ch
		}
		return directory.New(cfg.Directory.Path, cfg.Directory.Extensions, splitter), nil
	case "csv":
		if cfg.CSV == nil || cfg.CSV.Path == "" {
			return nil, fmt.Errorf("csv source requires source.csv.path: %w", domain.ErrConfiguration)
		}
		return csvfile.New(cfg.CSV.Path, loader.CSVOptions{
			ContentColumn: cfg.CSV.ContentColumn,
			IDColumn:      cfg.CSV.IDColumn,
		}), nil
	case "sqlite":
		if cfg.SQLite == nil || cfg.SQLite.Path == "" {
			return nil, fmt.Errorf("sqlite source requires source.sqlite.path: %w", domain.ErrConfiguration)
		}
		return sqlite.New(cfg.SQLite.Path, cfg.SQLite.Table)
	case "postgres":
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("postgres source requires source.postgres: %w", domain.ErrConfiguration)
		}
		return postgres.New(cfg.Postgres.DSN, cfg.Postgres.DSNEnv, cfg.Postgres.Table)
	default:
		return nil, fmt.Errorf("unknown source type %q: %w", cfg.Type, domain.ErrConfiguration)
	}
}
