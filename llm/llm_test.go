package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/quizrag/apperr"
	"github.com/fabfab/quizrag/config"
)

func TestNewClientDefaults(t *testing.T) {
	cfg := config.Config{
		LLM: config.LLMConfig{
			Provider: config.ProviderOllama,
			Model:    "llama3.2:1b",
		},
		OllamaHost: "http://localhost:11434",
	}

	client, err := NewClient(cfg)
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewClientRequiresAPIKeys(t *testing.T) {
	for _, provider := range []string{config.ProviderOpenAI, config.ProviderGroq} {
		_, err := NewClient(config.Config{LLM: config.LLMConfig{Provider: provider, Model: "m"}})
		assert.ErrorIs(t, err, apperr.ErrConfiguration, provider)
	}
}

func TestNewClientGroq(t *testing.T) {
	client, err := NewClient(config.Config{
		LLM:        config.LLMConfig{Provider: config.ProviderGroq, Model: "llama3-8b-8192"},
		GroqAPIKey: "gsk-test",
	})
	require.NoError(t, err)
	assert.IsType(t, &openAIClient{}, client)
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(config.Config{LLM: config.LLMConfig{Provider: "palm"}})
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.InDelta(t, 0.3, req.Options.Temperature, 1e-6)
		assert.Equal(t, []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "capital of France?"},
		}, req.Messages)

		_, _ = w.Write([]byte(`{"model":"llama3.2:1b","message":{"role":"assistant","content":"Paris"},"done":true}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(Options{Model: "llama3.2:1b", OllamaHost: srv.URL, Temperature: 0.3})
	out, err := client.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "capital of France?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris", out)
}

func TestOllamaGenerateReportsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(Options{Model: "m", OllamaHost: srv.URL})
	_, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req, "temperature", "zero temperature must still be sent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m",` +
			`"choices":[{"index":0,"message":{"role":"assistant","content":"Paris"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(Options{Model: "m", OpenAIAPIKey: "k", OpenAIBaseURL: srv.URL + "/v1"})
	out, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "capital of France?"}})
	require.NoError(t, err)
	assert.Equal(t, "Paris", out)
}

func TestOpenAIGenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(Options{Model: "m", OpenAIAPIKey: "k", OpenAIBaseURL: srv.URL + "/v1"})
	_, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.Error(t, err)
}
