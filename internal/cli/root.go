// Package cli implements the rag command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"rag/internal/chunker"
	"rag/internal/config"
	"rag/internal/embedding/tfidf"
	"rag/internal/generator"
	"rag/internal/logger"
	"rag/internal/service"
	"rag/internal/source"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "rag",
	Short: "Ask questions about your documents",
	Long: `rag answers questions from a collection of documents.

Documents come from a directory, a CSV file, SQLite or Postgres. Queries are
matched against a TF-IDF index and the best passages are handed to a
generator: an OpenAI-compatible model or the built-in extractive answerer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default ./config.yaml, then ~/.config/rag/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print diagnostic logs to stderr")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() (*config.AppConfig, error) {
	config.LoadDotEnv()
	var (
		cfg  *config.AppConfig
		path string
		err  error
	)
	if cfgPath == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		path = cfgPath
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.SetVerbose(verbose || cfg.Log.Verbose)
	logger.Debug("config loaded from %s", path)
	return cfg, nil
}

// openEngine builds and initializes the engine described by cfg.
func openEngine(ctx context.Context, cfg *config.AppConfig) (*service.Engine, error) {
	ch := chunker.New(chunker.WithChunkSize(cfg.Chunker.ChunkSize), chunker.WithOverlap(cfg.Chunker.ChunkOverlap))
	src, err := source.New(cfg.Source, ch)
	if err != nil {
		return nil, err
	}
	gen, err := generator.New(cfg.Generator)
	if err != nil {
		return nil, err
	}
	opts := []service.Option{
		service.WithTopK(cfg.Engine.TopK),
		service.WithSimilarityThreshold(cfg.Engine.SimilarityThreshold),
	}
	if cfg.Engine.Vectorizer == "tfidf" {
		opts = append(opts, service.WithVectorizer(tfidf.NewVectorizer(cfg.Engine.Dimension)))
	}
	engine := service.New(src, gen, opts...)
	if err := engine.Initialize(ctx); err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return engine, nil
}

// withEngine loads config, opens the engine, runs fn and closes the engine.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.AppConfig, engine *service.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()
	return fn(ctx, cfg, engine)
}
