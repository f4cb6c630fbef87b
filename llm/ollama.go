package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaHost = "http://localhost:11434"

type ollamaClient struct {
	endpoint    string
	model       string
	temperature float32
	http        *http.Client
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

// NewOllamaClient talks to a local Ollama server's /api/chat endpoint with
// streaming disabled.
func NewOllamaClient(opts Options) Client {
	host := strings.TrimRight(opts.OllamaHost, "/")
	if host == "" {
		host = defaultOllamaHost
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &ollamaClient{
		endpoint:    host + "/api/chat",
		model:       opts.Model,
		temperature: opts.Temperature,
		http:        &http.Client{Timeout: timeout},
	}
}

func (c *ollamaClient) Generate(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Options:  ollamaOptions{Temperature: c.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("marshal ollama chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create ollama chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ollama chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", ollamaStatusError(resp)
	}

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode ollama chat response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama chat: %s", parsed.Error)
	}

	return parsed.Message.Content, nil
}

func ollamaStatusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return fmt.Errorf("ollama chat returned %s: %s", resp.Status, body.Error)
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return fmt.Errorf("ollama chat returned %s: %s", resp.Status, text)
	}
	return fmt.Errorf("ollama chat returned %s", resp.Status)
}
