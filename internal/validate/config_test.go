package validate

import (
	"strings"
	"testing"

	"github.com/ppiankov/claimcheck/internal/model"
)

func TestConfig_Default(t *testing.T) {
	if err := Config(model.DefaultConfig()); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestConfig_Nil(t *testing.T) {
	if err := Config(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Config)
		want   string
	}{
		{"provider", func(c *model.Config) { c.LLM.Provider = "palm" }, "llm.provider"},
		{"workers", func(c *model.Config) { c.Quota.MaxWorkers = 0 }, "quota.maxworkers"},
		{"window", func(c *model.Config) { c.Quota.Window = 0 }, "quota.window"},
		{"timezone", func(c *model.Config) { c.Quota.Timezone = "Mars/Olympus" }, "quota.timezone"},
		{"burst", func(c *model.Config) { c.Quota.Burst = 50 }, "quota.burst"},
		{"search provider", func(c *model.Config) { c.Search.Provider = "bing" }, "search.provider"},
		{"endpoint", func(c *model.Config) { c.Search.Endpoint = "not a url" }, "search.endpoint"},
		{"store path", func(c *model.Config) { c.Store.Path = "" }, "store.path"},
		{"ollama model", func(c *model.Config) { c.LLM.Provider = "ollama"; c.LLM.Model = "" }, "llm.model"},
		{"batch size", func(c *model.Config) { c.Verify.BatchSize = 0 }, "verify.batchsize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := model.DefaultConfig()
			tt.mutate(cfg)

			err := Config(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

func TestConfig_StoreDisabledWithoutPath(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Store.Enabled = false
	cfg.Store.Path = ""

	if err := Config(cfg); err != nil {
		t.Errorf("Expected disabled store to need no path, got %v", err)
	}
}

func TestConfig_ReportsEveryField(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "palm"
	cfg.Quota.MaxWorkers = 100

	err := Config(cfg)
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !strings.Contains(err.Error(), "llm.provider") || !strings.Contains(err.Error(), "quota.maxworkers") {
		t.Errorf("Expected both fields reported, got %v", err)
	}
}
