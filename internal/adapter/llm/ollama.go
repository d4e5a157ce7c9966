package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"research/internal/port"
)

// OllamaClient generates text with a local Ollama server.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

var _ port.LLM = (*OllamaClient)(nil)

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func NewOllamaClient(model, baseURL string, timeout time.Duration) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	jsonData, err := json.Marshal(ollamaGenerateRequest{
		Model:  c.model,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var gen ollamaGenerateResponse
	if err := json.Unmarshal(body, &gen); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if gen.Error != "" {
		return "", fmt.Errorf("API error: %s", gen.Error)
	}
	if strings.TrimSpace(gen.Response) == "" {
		return "", errors.New("ollama returned an empty response")
	}
	return gen.Response, nil
}

func (c *OllamaClient) ModelName() string {
	return c.model
}
