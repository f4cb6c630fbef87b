package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/fabfab/quizrag/apperr"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"

	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// LLMConfig selects the chat model. Temperature is sent to every provider and
// defaults to 0 so grading stays repeatable.
type LLMConfig struct {
	Provider    string
	Model       string
	Temperature float32
}

type EmbeddingConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type ChunkingConfig struct {
	Size    int
	Overlap int
}

type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type Config struct {
	DataDir           string
	AllowedExtensions []string
	Chunking          ChunkingConfig
	RetrievalK        int
	ModelTimeout      time.Duration
	IndexTimeout      time.Duration

	LLM        LLMConfig
	Embeddings EmbeddingConfig

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GroqAPIKey    string

	IndexBackend string
	PostgresDSN  string
	Neo4jURI     string
	Neo4jUser    string
	Neo4jPass    string

	Google  GoogleOAuthConfig
	LogMode string
}

// Load reads configuration from the environment, after loading an optional
// .env file from the working directory.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DataDir:           getEnv("DATA_DIR", "user_data"),
		AllowedExtensions: splitList(getEnv("ALLOWED_EXTENSIONS", ".txt,.csv,.docx,.pdf")),
		Chunking: ChunkingConfig{
			Size:    getEnvInt("CHUNK_SIZE", 1000),
			Overlap: getEnvInt("CHUNK_OVERLAP", 100),
		},
		RetrievalK:   getEnvInt("RETRIEVAL_K", 4),
		ModelTimeout: getEnvDuration("MODEL_TIMEOUT", 60*time.Second),
		IndexTimeout: getEnvDuration("INDEX_TIMEOUT", 30*time.Second),
		LLM: LLMConfig{
			Provider:    strings.ToLower(getEnv("LLM_PROVIDER", ProviderOllama)),
			Model:       getEnv("LLM_MODEL", "llama3.2:1b"),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0),
		},
		Embeddings: EmbeddingConfig{
			Provider:  strings.ToLower(getEnv("EMBEDDINGS_PROVIDER", ProviderOllama)),
			Model:     getEnv("EMBEDDINGS_MODEL", "all-minilm"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 384),
		},
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		GroqAPIKey:    getEnv("GROQ_API_KEY", ""),
		IndexBackend:  strings.ToLower(getEnv("INDEX_BACKEND", BackendSQLite)),
		PostgresDSN:   getEnv("POSTGRES_DSN", "postgres://localhost:5432/quizrag?sslmode=disable"),
		Neo4jURI:      getEnv("NEO4J_URI", ""),
		Neo4jUser:     getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPass:     getEnv("NEO4J_PASSWORD", "password"),
		Google: GoogleOAuthConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:5000/login/callback"),
		},
		LogMode: getEnv("LOG_MODE", "dev"),
	}
}

// Validate reports settings that would make the pipeline unusable.
func (c Config) Validate() error {
	const op = "validate config"

	if strings.TrimSpace(c.DataDir) == "" {
		return apperr.Newf(apperr.ErrConfiguration, op, "DATA_DIR must not be empty")
	}
	if len(c.AllowedExtensions) == 0 {
		return apperr.Newf(apperr.ErrConfiguration, op, "ALLOWED_EXTENSIONS must list at least one extension")
	}
	if c.Chunking.Size <= 0 {
		return apperr.Newf(apperr.ErrConfiguration, op, "CHUNK_SIZE must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return apperr.Newf(apperr.ErrConfiguration, op, "CHUNK_OVERLAP must be >= 0 and < CHUNK_SIZE, got %d", c.Chunking.Overlap)
	}
	if c.RetrievalK <= 0 {
		return apperr.Newf(apperr.ErrConfiguration, op, "RETRIEVAL_K must be positive, got %d", c.RetrievalK)
	}
	if c.ModelTimeout <= 0 || c.IndexTimeout <= 0 {
		return apperr.Newf(apperr.ErrConfiguration, op, "MODEL_TIMEOUT and INDEX_TIMEOUT must be positive")
	}
	if c.Embeddings.Dimension <= 0 {
		return apperr.Newf(apperr.ErrConfiguration, op, "EMBEDDINGS_DIMENSION must be positive, got %d", c.Embeddings.Dimension)
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return apperr.Newf(apperr.ErrConfiguration, op, "LLM_TEMPERATURE must be within [0, 2], got %g", c.LLM.Temperature)
	}

	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderGroq:
	default:
		return apperr.Newf(apperr.ErrConfiguration, op, "unknown llm provider: %s", c.LLM.Provider)
	}
	switch c.Embeddings.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return apperr.Newf(apperr.ErrConfiguration, op, "unknown embedding provider: %s", c.Embeddings.Provider)
	}
	switch c.IndexBackend {
	case BackendSQLite, BackendPostgres:
	default:
		return apperr.Newf(apperr.ErrConfiguration, op, "unknown index backend: %s", c.IndexBackend)
	}

	return nil
}

// GraphEnabled reports whether collection lineage should be written to Neo4j.
func (c Config) GraphEnabled() bool {
	return strings.TrimSpace(c.Neo4jURI) != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvFloat(key string, fallback float32) float32 {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return fallback
	}
	return float32(value)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}
	if value, err := time.ParseDuration(raw); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, part)
	}
	return out
}

// String renders a one-line summary without secrets.
func (c Config) String() string {
	return fmt.Sprintf("data_dir=%s backend=%s llm=%s/%s embeddings=%s/%s(%d) chunk=%d/%d k=%d",
		c.DataDir, c.IndexBackend, c.LLM.Provider, c.LLM.Model,
		c.Embeddings.Provider, c.Embeddings.Model, c.Embeddings.Dimension,
		c.Chunking.Size, c.Chunking.Overlap, c.RetrievalK)
}
