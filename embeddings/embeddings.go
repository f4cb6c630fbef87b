// Package embeddings maps text to fixed-dimension vectors through a remote
// embedding model.
package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/fabfab/quizrag/apperr"
	"github.com/fabfab/quizrag/config"
)

// Embedder returns one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Provider  string
	Model     string
	Dimension int
	Timeout   time.Duration

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewEmbedder(cfg config.Config) (Embedder, error) {
	const op = "new embedder"

	opts := Options{
		Provider:      cfg.Embeddings.Provider,
		Model:         cfg.Embeddings.Model,
		Dimension:     cfg.Embeddings.Dimension,
		Timeout:       cfg.IndexTimeout,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, apperr.Newf(apperr.ErrConfiguration, op, "openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIEmbedder(opts), nil
	default:
		return nil, apperr.Newf(apperr.ErrConfiguration, op, "unknown embedding provider: %s", opts.Provider)
	}
}

func checkDimension(provider string, want int, vec []float32) error {
	if want > 0 && len(vec) != want {
		return &DimensionError{Provider: provider, Want: want, Got: len(vec)}
	}
	return nil
}

// DimensionError reports a vector whose length differs from the configured
// dimension.
type DimensionError struct {
	Provider  string
	Want, Got int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s embedding dimension mismatch: expected %d, got %d", e.Provider, e.Want, e.Got)
}
