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

// AnthropicClient calls the Anthropic Messages API
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     Config
	tokens     atomic.Int64
}

// Anthropic API structures
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(config Config) (*AnthropicClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if config.Model == "" {
		config.Model = "claude-3-5-haiku-20241022"
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	return &AnthropicClient{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: newHTTPClient(config, 60*time.Second),
		config:     config,
	}, nil
}

// Name returns the provider name
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Tokens returns the total tokens reported by the API so far
func (c *AnthropicClient) Tokens() int64 {
	return c.tokens.Load()
}

// Call sends the conversation. Anthropic has no JSON mode, so the answer is
// primed with an opening brace which is prepended back to the text.
func (c *AnthropicClient) Call(ctx context.Context, messages []Message) (string, error) {
	system, user := splitMessages(messages)

	apiReq := anthropicRequest{
		Model:     c.config.Model,
		MaxTokens: c.config.maxTokens(),
		System:    system,
		Messages: []anthropicMessage{
			{Role: "user", Content: user},
			{Role: "assistant", Content: "{"},
		},
		Temperature: c.config.Temperature,
	}

	resp, err := c.makeRequest(ctx, apiReq)
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	c.tokens.Add(int64(resp.Usage.InputTokens + resp.Usage.OutputTokens))

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	if !strings.HasPrefix(text, "{") {
		text = "{" + text
	}
	return text, nil
}

// makeRequest makes an HTTP request to the Anthropic API
func (c *AnthropicClient) makeRequest(ctx context.Context, apiReq anthropicRequest) (*anthropicResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/messages", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

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
		var apiErr anthropicError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s - %s", httpResp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &resp, nil
}
