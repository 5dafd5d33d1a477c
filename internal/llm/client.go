package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/util"
)

// ErrEmptyResponse is returned when a provider answers without any text
var ErrEmptyResponse = errors.New("empty model response")

// Role of a chat message
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one chat turn sent to a model
type Message struct {
	Role    Role
	Content string
}

// Client sends a conversation to a model and returns the raw text answer.
// Implementations must be safe for concurrent use.
type Client interface {
	// Name returns the provider name
	Name() string

	// Call sends messages and returns the model's text
	Call(ctx context.Context, messages []Message) (string, error)
}

// TokenCounter is implemented by clients that report token consumption
type TokenCounter interface {
	Tokens() int64
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "gemini", "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (OpenAI-compatible servers, Ollama, tests)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "gemini",
		Model:     "gemini-2.5-flash",
		Timeout:   60,
		MaxTokens: 4096,
	}
}

// ConfigFromModel converts model configuration into a client config for one key
func ConfigFromModel(cfg *model.Config, apiKey string) Config {
	return Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      apiKey,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.LLM.Timeout,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		HTTPProxy:   cfg.HTTP.HTTPProxy,
		HTTPSProxy:  cfg.HTTP.HTTPSProxy,
		NoProxy:     cfg.HTTP.NoProxy,
	}
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout <= 0 {
		return fallback
	}
	return time.Duration(c.Timeout) * time.Second
}

func (c Config) maxTokens() int {
	if c.MaxTokens <= 0 {
		return 4096
	}
	return c.MaxTokens
}

func newHTTPClient(cfg Config, fallback time.Duration) *http.Client {
	return &http.Client{
		Timeout: cfg.timeout(fallback),
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		},
	}
}

// splitMessages joins system turns into one instruction and the rest into
// one user prompt, for providers with a single system slot.
func splitMessages(messages []Message) (system, user string) {
	var sys, usr []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			sys = append(sys, m.Content)
		} else {
			usr = append(usr, m.Content)
		}
	}
	return strings.Join(sys, "\n\n"), strings.Join(usr, "\n\n")
}

type seedKey struct{}

// WithSeed attaches a sampling seed hint to ctx. Providers that support
// seeding pass it on; others ignore it.
func WithSeed(ctx context.Context, seed int) context.Context {
	return context.WithValue(ctx, seedKey{}, seed)
}

// SeedFrom returns the seed hint attached to ctx
func SeedFrom(ctx context.Context) (int, bool) {
	seed, ok := ctx.Value(seedKey{}).(int)
	return seed, ok
}
