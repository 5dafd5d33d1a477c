// Package retrieve gathers web evidence for claims through a search backend.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// SearchResult is one hit returned by a backend
type SearchResult struct {
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Source  string `json:"source,omitempty"`
}

// Backend runs web searches. An empty result list is a valid answer.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
}

// NoneBackend never finds anything. Claims checked with it end up with
// "no evidence".
type NoneBackend struct{}

// Name returns the backend name
func (NoneBackend) Name() string { return "none" }

// Search returns no results
func (NoneBackend) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	return nil, ctx.Err()
}

// NewBackend builds the configured backend. A serper backend without an API
// key degrades to NoneBackend with a warning.
func NewBackend(cfg model.SearchConfig, limiter *worker.HostLimiter, httpCfg model.HTTPConfig) (Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case "none", "":
		return NoneBackend{}, nil
	case "serper":
		if cfg.APIKey == "" {
			slog.Warn("SERPER_API_KEY not set, evidence retrieval disabled")
			return NoneBackend{}, nil
		}
		return NewSerperBackend(SerperConfig{
			APIKey:     cfg.APIKey,
			Endpoint:   cfg.Endpoint,
			Timeout:    cfg.Timeout,
			HTTPProxy:  httpCfg.HTTPProxy,
			HTTPSProxy: httpCfg.HTTPSProxy,
			NoProxy:    httpCfg.NoProxy,
		}, limiter)
	default:
		return nil, fmt.Errorf("unknown search provider: %s (supported: serper, none)", cfg.Provider)
	}
}
