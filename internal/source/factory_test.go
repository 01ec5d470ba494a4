package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag/internal/chunker"
	"rag/internal/config"
	"rag/internal/domain"
)

func TestNew_TypeTags(t *testing.T) {
	dir := t.TempDir()
	cfgs := map[string]config.SourceConfig{
		"memory":    {Type: "memory"},
		"directory": {Type: "directory", Directory: &config.DirectoryConfig{Path: dir}},
		"csv":       {Type: "csv", CSV: &config.CSVConfig{Path: dir + "/faq.csv"}},
		"sqlite":    {Type: "sqlite", SQLite: &config.SQLiteConfig{Path: dir + "/docs.db"}},
		"postgres":  {Type: "postgres", Postgres: &config.PostgresConfig{DSN: "postgres://localhost/db"}},
	}
	for _, typ := range Types {
		t.Run(typ, func(t *testing.T) {
			src, err := New(cfgs[typ], chunker.New())
			require.NoError(t, err)
			assert.Equal(t, typ, src.Type())
			assert.False(t, src.Initialized())
		})
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SourceConfig
	}{
		{"unknown", config.SourceConfig{Type: "s3"}},
		{"directory without path", config.SourceConfig{Type: "directory"}},
		{"csv without path", config.SourceConfig{Type: "csv", CSV: &config.CSVConfig{}}},
		{"sqlite without path", config.SourceConfig{Type: "sqlite"}},
		{"sqlite bad table", config.SourceConfig{Type: "sqlite", SQLite: &config.SQLiteConfig{Path: "x.db", Table: "a b"}}},
		{"postgres without section", config.SourceConfig{Type: "postgres"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, nil)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}
