package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EngineConfig tunes retrieval.
type EngineConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	Dimension           int     `yaml:"dimension"`
	// Vectorizer is "tfidf" or "none"; "none" delegates retrieval to the source's own search.
	Vectorizer string `yaml:"vectorizer"`
}

// ChunkerConfig configures how long texts are split during ingestion.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// DirectoryConfig points the directory source at a tree of files.
type DirectoryConfig struct {
	Path       string   `yaml:"path"`
	Extensions []string `yaml:"extensions,omitempty"`
}

// CSVConfig describes a single CSV file source.
type CSVConfig struct {
	Path          string `yaml:"path"`
	ContentColumn string `yaml:"content_column,omitempty"`
	IDColumn      string `yaml:"id_column,omitempty"`
}

// SQLiteConfig contains the database file and table for the SQLite source.
type SQLiteConfig struct {
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

// PostgresConfig contains connection details for the Postgres source.
type PostgresConfig struct {
	DSN    string `yaml:"dsn,omitempty"`
	DSNEnv string `yaml:"dsn_env,omitempty"`
	Table  string `yaml:"table"`
}

// SourceConfig selects and configures the document source.
type SourceConfig struct {
	Type      string           `yaml:"type"`
	Directory *DirectoryConfig `yaml:"directory,omitempty"`
	CSV       *CSVConfig       `yaml:"csv,omitempty"`
	SQLite    *SQLiteConfig    `yaml:"sqlite,omitempty"`
	Postgres  *PostgresConfig  `yaml:"postgres,omitempty"`
}

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries"`
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
	SystemPrompt      string  `yaml:"system_prompt,omitempty"`
}

// ExtractiveConfig configures the offline extractive generator.
type ExtractiveConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// GeneratorConfig selects and configures the generation provider.
type GeneratorConfig struct {
	Type       string            `yaml:"type"`
	OpenAI     *OpenAIConfig     `yaml:"openai,omitempty"`
	Extractive *ExtractiveConfig `yaml:"extractive,omitempty"`
}

// WatchConfig controls directory change detection.
type WatchConfig struct {
	Enabled        bool `yaml:"enabled"`
	DebounceMillis int  `yaml:"debounce_millis"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	Verbose bool `yaml:"verbose"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Engine    EngineConfig    `yaml:"engine"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Source    SourceConfig    `yaml:"source"`
	Generator GeneratorConfig `yaml:"generator"`
	Watch     WatchConfig     `yaml:"watch"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Keys absent from the file keep their default values.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := applyEnvOverrides(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/rag/config.yaml.
// If neither exists, it writes defaults to ~/.config/rag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// LoadDotEnv loads variables from a .env file in the working directory, if present.
// Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rag", "config.yaml"), nil
}

// Default returns the built-in configuration: TF-IDF retrieval over ./docs
// answered by the extractive generator.
func Default() *AppConfig {
	return &AppConfig{
		Engine: EngineConfig{
			TopK:                5,
			SimilarityThreshold: 0.3,
			Dimension:           384,
			Vectorizer:          "tfidf",
		},
		Chunker: ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 200},
		Source: SourceConfig{
			Type:      "directory",
			Directory: &DirectoryConfig{Path: "docs"},
		},
		Generator: GeneratorConfig{
			Type:       "extractive",
			Extractive: &ExtractiveConfig{MaxSentences: 3},
		},
		Watch: WatchConfig{DebounceMillis: 500},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Engine.TopK == 0 {
		cfg.Engine.TopK = 5
	}
	if cfg.Engine.Dimension == 0 {
		cfg.Engine.Dimension = 384
	}
	if cfg.Engine.Vectorizer == "" {
		cfg.Engine.Vectorizer = "tfidf"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Watch.DebounceMillis == 0 {
		cfg.Watch.DebounceMillis = 500
	}
	if cfg.Source.Type == "sqlite" && cfg.Source.SQLite != nil && cfg.Source.SQLite.Table == "" {
		cfg.Source.SQLite.Table = "documents"
	}
	if cfg.Source.Type == "postgres" && cfg.Source.Postgres != nil {
		if cfg.Source.Postgres.Table == "" {
			cfg.Source.Postgres.Table = "documents"
		}
		if cfg.Source.Postgres.DSN == "" && cfg.Source.Postgres.DSNEnv == "" {
			cfg.Source.Postgres.DSNEnv = "DATABASE_URL"
		}
	}
	if cfg.Generator.Type == "openai" && cfg.Generator.OpenAI != nil {
		o := cfg.Generator.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "gpt-4o-mini"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 120
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 3
		}
	}
	if cfg.Generator.Type == "extractive" && cfg.Generator.Extractive == nil {
		cfg.Generator.Extractive = &ExtractiveConfig{MaxSentences: 3}
	}
}

// applyEnvOverrides lets a few settings be changed without editing the file.
func applyEnvOverrides(cfg *AppConfig) error {
	if v := os.Getenv("RAG_TOP_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RAG_TOP_K: %w", err)
		}
		cfg.Engine.TopK = n
	}
	if v := os.Getenv("RAG_SIMILARITY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RAG_SIMILARITY_THRESHOLD: %w", err)
		}
		cfg.Engine.SimilarityThreshold = f
	}
	if v := os.Getenv("RAG_SOURCE_TYPE"); v != "" {
		cfg.Source.Type = v
	}
	if v := os.Getenv("RAG_GENERATOR_TYPE"); v != "" {
		cfg.Generator.Type = v
		applyConfigDefaults(cfg)
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *AppConfig) Validate() error {
	switch {
	case c.Engine.TopK <= 0:
		return fmt.Errorf("engine.top_k must be positive, got %d", c.Engine.TopK)
	case c.Engine.SimilarityThreshold < -1 || c.Engine.SimilarityThreshold > 1:
		return fmt.Errorf("engine.similarity_threshold must be within [-1, 1], got %g", c.Engine.SimilarityThreshold)
	case c.Engine.Dimension <= 0:
		return fmt.Errorf("engine.dimension must be positive, got %d", c.Engine.Dimension)
	case c.Engine.Vectorizer != "tfidf" && c.Engine.Vectorizer != "none":
		return fmt.Errorf("unknown engine.vectorizer: %s", c.Engine.Vectorizer)
	case c.Chunker.ChunkSize <= 0:
		return fmt.Errorf("chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize)
	case c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize:
		return fmt.Errorf("chunker.chunk_overlap must be within [0, chunk_size), got %d", c.Chunker.ChunkOverlap)
	case c.Watch.DebounceMillis < 0:
		return fmt.Errorf("watch.debounce_millis must not be negative, got %d", c.Watch.DebounceMillis)
	}
	switch c.Generator.Type {
	case "extractive":
	case "openai":
		if c.Generator.OpenAI == nil {
			return errors.New("openai generator config missing")
		}
	default:
		return fmt.Errorf("unknown generator: %s", c.Generator.Type)
	}
	return nil
}
