package embeddings

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

func TestNewEmbedderDefaults(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingConfig{
			Provider:  config.ProviderOllama,
			Model:     "all-minilm",
			Dimension: 3,
		},
		OllamaHost: "http://localhost:11434",
	}

	embedder, err := NewEmbedder(cfg)
	require.NoError(t, err)
	assert.NotNil(t, embedder)
}

func TestNewEmbedderOpenAIMissingKey(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingConfig{
			Provider:  config.ProviderOpenAI,
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
	}

	_, err := NewEmbedder(cfg)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	_, err := NewEmbedder(config.Config{Embeddings: config.EmbeddingConfig{Provider: "chroma"}})
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestOllamaEmbedder(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		assert.Equal(t, []string{"a", "bbb"}, req.Input)

		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float64{{1, 0, 1}, {3, 0, 1}}})
	}))
	defer srv.Close()

	embedder := NewOllamaEmbedder(Options{Model: "all-minilm", Dimension: 3, OllamaHost: srv.URL + "/"})

	vectors, err := embedder.Embed(context.Background(), []string{"a", "bbb"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, [][]float32{{1, 0, 1}, {3, 0, 1}}, vectors)
}

func TestOllamaEmbedderBatches(t *testing.T) {
	var sizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		sizes = append(sizes, len(req.Input))

		vectors := make([][]float64, len(req.Input))
		for i := range vectors {
			vectors[i] = []float64{1, 1}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
	}))
	defer srv.Close()

	texts := make([]string, ollamaBatchSize+5)
	for i := range texts {
		texts[i] = "chunk"
	}

	embedder := NewOllamaEmbedder(Options{Model: "m", Dimension: 2, OllamaHost: srv.URL})
	vectors, err := embedder.Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vectors, len(texts))
	assert.Equal(t, []int{ollamaBatchSize, 5}, sizes)
}

func TestOllamaEmbedderCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float64{{1, 2, 3}}})
	}))
	defer srv.Close()

	embedder := NewOllamaEmbedder(Options{Model: "m", Dimension: 3, OllamaHost: srv.URL})
	_, err := embedder.Embed(context.Background(), []string{"x", "y"})
	assert.Error(t, err)
}

func TestOllamaEmbedderDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float64{{1, 2}}})
	}))
	defer srv.Close()

	embedder := NewOllamaEmbedder(Options{Model: "m", Dimension: 3, OllamaHost: srv.URL})

	_, err := embedder.Embed(context.Background(), []string{"x"})
	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Want)
	assert.Equal(t, 2, dimErr.Got)
}

func TestOllamaEmbedderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	embedder := NewOllamaEmbedder(Options{Model: "m", OllamaHost: srv.URL})

	_, err := embedder.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOpenAIEmbedderRestoresInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[` +
			`{"object":"embedding","index":1,"embedding":[0,1]},` +
			`{"object":"embedding","index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	embedder := NewOpenAIEmbedder(Options{Model: "m", Dimension: 2, OpenAIAPIKey: "test-key", OpenAIBaseURL: srv.URL + "/v1"})

	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
}
