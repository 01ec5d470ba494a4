// Package generator builds the configured answer generator.
package generator

import (
	"fmt"
	"os"
	"time"

	"rag/internal/config"
	"rag/internal/domain"
	"rag/internal/generator/extractive"
	"rag/internal/generator/openai"
)

// New creates the generator selected by cfg.Type. The OpenAI API key is read
// from the environment variable named by cfg.OpenAI.APIKeyEnv.
func New(cfg config.GeneratorConfig) (domain.Generator, error) {
	switch cfg.Type {
	case "extractive", "":
		n := extractive.DefaultMaxSentences
		if cfg.Extractive != nil {
			n = cfg.Extractive.MaxSentences
		}
		return extractive.New(n), nil
	case "openai":
		o := cfg.OpenAI
		if o == nil {
			return nil, fmt.Errorf("openai generator config missing: %w", domain.ErrConfiguration)
		}
		return openai.New(openai.Config{
			BaseURL:           o.BaseURL,
			APIKey:            os.Getenv(o.APIKeyEnv),
			Model:             o.Model,
			Timeout:           time.Duration(o.TimeoutSecs) * time.Second,
			MaxRetries:        o.MaxRetries,
			Temperature:       o.Temperature,
			MaxTokens:         o.MaxTokens,
			RequestsPerSecond: o.RequestsPerSecond,
			SystemPrompt:      o.SystemPrompt,
		})
	default:
		return nil, fmt.Errorf("unknown generator %q: %w", cfg.Type, domain.ErrConfiguration)
	}
}
