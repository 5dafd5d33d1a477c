package llm

import (
	"fmt"
	"strings"
)

// NewClient creates a new LLM client based on configuration
func NewClient(config Config) (Client, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "gemini", "google":
		return NewGeminiClient(config)

	case "openai":
		return NewOpenAIClient(config)

	case "anthropic", "claude":
		return NewAnthropicClient(config)

	case "ollama":
		return NewOllamaClient(config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: gemini, openai, anthropic, ollama)", config.Provider)
	}
}

// DefaultKeyEnv returns the base environment variable holding keys for provider
func DefaultKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic", "claude":
		return "ANTHROPIC_API_KEY"
	case "ollama":
		return ""
	default:
		return "GEMINI_API_KEY"
	}
}

// NeedsKey reports whether provider requires an API key
func NeedsKey(provider string) bool {
	return strings.ToLower(provider) != "ollama"
}
