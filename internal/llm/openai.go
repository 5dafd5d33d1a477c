package llm

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient calls the Chat Completions API of OpenAI or any
// OpenAI-compatible server (set BaseURL).
type OpenAIClient struct {
	client *openai.Client
	config Config
	tokens atomic.Int64
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(config Config) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = newHTTPClient(config, 60*time.Second)

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Tokens returns the total tokens reported by the API so far
func (c *OpenAIClient) Tokens() int64 {
	return c.tokens.Load()
}

// Call sends the conversation in JSON response mode
func (c *OpenAIClient) Call(ctx context.Context, messages []Message) (string, error) {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleSystem {
			role = openai.ChatMessageRoleSystem
		}
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    chatMessages,
		MaxTokens:   c.config.maxTokens(),
		Temperature: float32(c.config.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if seed, ok := SeedFrom(ctx); ok {
		chatReq.Seed = &seed
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	c.tokens.Add(int64(resp.Usage.TotalTokens))

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
