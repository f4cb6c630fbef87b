// Package llm wraps the chat-completion providers behind a single Client.
package llm

import (
	"context"
	"time"

	"github.com/fabfab/quizrag/apperr"
	"github.com/fabfab/quizrag/config"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

type Options struct {
	Provider    string
	Model       string
	Temperature float32
	Timeout     time.Duration

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	const op = "new llm client"

	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		Timeout:       cfg.ModelTimeout,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, apperr.Newf(apperr.ErrConfiguration, op, "openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	case config.ProviderGroq:
		if cfg.GroqAPIKey == "" {
			return nil, apperr.Newf(apperr.ErrConfiguration, op, "groq provider selected but GROQ_API_KEY not set")
		}
		opts.OpenAIAPIKey = cfg.GroqAPIKey
		opts.OpenAIBaseURL = GroqBaseURL
		return NewOpenAIClient(opts), nil
	default:
		return nil, apperr.Newf(apperr.ErrConfiguration, op, "unknown llm provider: %s", opts.Provider)
	}
}
