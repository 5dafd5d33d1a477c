package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// OllamaClient calls a local Ollama server
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	config     Config
	tokens     atomic.Int64
}

// Ollama API structures
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
	Seed        *int    `json:"seed,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`

	// Token counts (only present when done=true)
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(config Config) (*OllamaClient, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// local models can be slow
		httpClient: newHTTPClient(config, 120*time.Second),
		config:     config,
	}, nil
}

// Name returns the provider name
func (c *OllamaClient) Name() string {
	return "ollama"
}

// Tokens returns prompt plus generated token counts reported so far
func (c *OllamaClient) Tokens() int64 {
	return c.tokens.Load()
}

// Call sends the conversation with JSON output format
func (c *OllamaClient) Call(ctx context.Context, messages []Message) (string, error) {
	system, user := splitMessages(messages)

	apiReq := ollamaRequest{
		Model:  c.config.Model,
		Prompt: user,
		Stream: false,
		System: system,
		Format: "json",
		Options: ollamaOptions{
			Temperature: c.config.Temperature,
			NumPredict:  c.config.maxTokens(),
		},
	}
	if seed, ok := SeedFrom(ctx); ok {
		apiReq.Options.Seed = &seed
	}

	resp, err := c.makeRequest(ctx, apiReq)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}
	c.tokens.Add(int64(resp.PromptEvalCount + resp.EvalCount))

	text := strings.TrimSpace(resp.Response)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// makeRequest makes an HTTP request to the Ollama API
func (c *OllamaClient) makeRequest(ctx context.Context, apiReq ollamaRequest) (*ollamaResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &resp, nil
}
