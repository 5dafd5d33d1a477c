package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds every tunable of a claimcheck run.
// Credentials are never read from or written to the config file.
type Config struct {
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Quota    QuotaConfig    `yaml:"quota" mapstructure:"quota"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Verify   VerifyConfig   `yaml:"verify" mapstructure:"verify"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
}

// LLMConfig selects the language model provider
type LLMConfig struct {
	Provider    string   `yaml:"provider" mapstructure:"provider" validate:"oneof=gemini openai anthropic ollama"`
	Model       string   `yaml:"model" mapstructure:"model"`
	BaseURL     string   `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int      `yaml:"timeout" mapstructure:"timeout" validate:"gte=1"` // seconds
	MaxTokens   int      `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=0"`
	Temperature float64  `yaml:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`
	KeyEnv      string   `yaml:"key_env" mapstructure:"key_env"` // Base name, e.g. GEMINI_API_KEY
	APIKeys     []string `yaml:"-" mapstructure:"-"`
}

// QuotaConfig bounds how hard each API key may be driven
type QuotaConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window" mapstructure:"requests_per_window" validate:"gte=1"`
	Window            time.Duration `yaml:"window" mapstructure:"window" validate:"gt=0"`
	Burst             int           `yaml:"burst" mapstructure:"burst" validate:"gte=0"` // 0 = requests_per_window
	RequestsPerDay    int           `yaml:"requests_per_day" mapstructure:"requests_per_day" validate:"gte=1"`
	Timezone          string        `yaml:"timezone" mapstructure:"timezone" validate:"required"`
	MaxWorkers        int           `yaml:"max_workers" mapstructure:"max_workers" validate:"gte=1,lte=64"`
	LongWait          time.Duration `yaml:"long_wait" mapstructure:"long_wait" validate:"gt=0"`
}

// PipelineConfig tunes the per-document stages
type PipelineConfig struct {
	Retries            int  `yaml:"retries" mapstructure:"retries" validate:"gte=1"`
	MaxQueriesPerClaim int  `yaml:"max_queries_per_claim" mapstructure:"max_queries_per_claim" validate:"gte=1"`
	SearchTopK         int  `yaml:"search_top_k" mapstructure:"search_top_k" validate:"gte=1"`
	RetrievalWorkers   int  `yaml:"retrieval_workers" mapstructure:"retrieval_workers" validate:"gte=1"`
	MinSentenceLength  int  `yaml:"min_sentence_length" mapstructure:"min_sentence_length" validate:"gte=1"`
	SkipRestore        bool `yaml:"skip_restore" mapstructure:"skip_restore"`
}

// VerifyConfig bounds verification requests
type VerifyConfig struct {
	BatchSize        int `yaml:"batch_size" mapstructure:"batch_size" validate:"gte=1"`
	MaxEvidenceChars int `yaml:"max_evidence_chars" mapstructure:"max_evidence_chars" validate:"gte=1"`
}

// SearchConfig selects the evidence retrieval backend
type SearchConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider" validate:"oneof=serper none"`
	Endpoint          string  `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,url"`
	Timeout           int     `yaml:"timeout" mapstructure:"timeout" validate:"gte=1"` // seconds
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `yaml:"burst" mapstructure:"burst" validate:"gte=1"`
	APIKey            string  `yaml:"-" mapstructure:"-"`
}

// HTTPConfig applies to document fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gte=1024"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig controls the search result cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl" validate:"gte=0"`
}

// StoreConfig controls the run history database
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path" validate:"required_if=Enabled true"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose     bool   `yaml:"verbose" mapstructure:"verbose"`
	MetricsAddr string `yaml:"metrics_addr,omitempty" mapstructure:"metrics_addr"`
}

// DefaultConfig returns defaults sized for free-tier Gemini keys
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".claimcheck")

	return &Config{
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			Timeout:     60,
			MaxTokens:   4096,
			Temperature: 0,
			KeyEnv:      "GEMINI_API_KEY",
		},
		Quota: QuotaConfig{
			RequestsPerWindow: 10,
			Window:            time.Minute,
			RequestsPerDay:    250,
			Timezone:          "America/Los_Angeles",
			MaxWorkers:        5,
			LongWait:          5 * time.Minute,
		},
		Pipeline: PipelineConfig{
			Retries:            3,
			MaxQueriesPerClaim: 5,
			SearchTopK:         3,
			RetrievalWorkers:   4,
			MinSentenceLength:  3,
		},
		Verify: VerifyConfig{
			BatchSize:        5,
			MaxEvidenceChars: 500,
		},
		Search: SearchConfig{
			Provider:          "serper",
			Endpoint:          "https://google.serper.dev/search",
			Timeout:           10,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "claimcheck/0.3 (+https://github.com/ppiankov/claimcheck)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     filepath.Join(base, "cache"),
			TTL:     24 * time.Hour,
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    filepath.Join(base, "history.db"),
		},
	}
}
