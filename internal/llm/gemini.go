package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// GeminiClient calls the Gemini generateContent endpoint in JSON mode
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     Config
	tokens     atomic.Int64
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	Seed             *int    `json:"seed,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(config Config) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	return &GeminiClient{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: newHTTPClient(config, 60*time.Second),
		config:     config,
	}, nil
}

// Name returns the provider name
func (c *GeminiClient) Name() string {
	return "gemini"
}

// Tokens returns the total tokens reported by the API so far
func (c *GeminiClient) Tokens() int64 {
	return c.tokens.Load()
}

// Call sends the conversation and returns the first candidate's text
func (c *GeminiClient) Call(ctx context.Context, messages []Message) (string, error) {
	system, user := splitMessages(messages)

	apiReq := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: user}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      c.config.Temperature,
			MaxOutputTokens:  c.config.maxTokens(),
			ResponseMimeType: "application/json",
		},
	}
	if system != "" {
		apiReq.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	if seed, ok := SeedFrom(ctx); ok {
		apiReq.GenerationConfig.Seed = &seed
	}

	resp, err := c.makeRequest(ctx, apiReq)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	c.tokens.Add(int64(resp.UsageMetadata.TotalTokenCount))

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}

	slog.Debug("gemini call done",
		"model", c.config.Model,
		"finish_reason", resp.Candidates[0].FinishReason,
		"tokens", resp.UsageMetadata.TotalTokenCount)
	return text, nil
}

// makeRequest makes an HTTP request to the Gemini API
func (c *GeminiClient) makeRequest(ctx context.Context, apiReq geminiRequest) (*geminiResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.config.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

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
		var apiErr geminiError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s - %s", httpResp.StatusCode, apiErr.Error.Status, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &resp, nil
}
