package retrieve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ppiankov/claimcheck/internal/util"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// DefaultSerperEndpoint is the Google search endpoint of serper.dev
const DefaultSerperEndpoint = "https://google.serper.dev/search"

// SerperConfig configures the serper.dev backend
type SerperConfig struct {
	APIKey   string
	Endpoint string
	Timeout  int // seconds

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// SerperBackend searches Google through serper.dev
type SerperBackend struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *worker.HostLimiter
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Source  string `json:"source"`
	} `json:"organic"`
}

// NewSerperBackend creates a serper backend. limiter may be nil.
func NewSerperBackend(cfg SerperConfig, limiter *worker.HostLimiter) (*SerperBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("serper API key is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultSerperEndpoint
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &SerperBackend{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
		},
		limiter: limiter,
	}, nil
}

// Name returns the backend name
func (b *SerperBackend) Name() string {
	return "serper"
}

// Search returns up to topK safe organic results. Twice as many results are
// requested so filtering still leaves enough.
func (b *SerperBackend) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 3
	}
	if b.limiter != nil {
		if err := b.limiter.WaitURL(ctx, b.endpoint); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(serperRequest{Q: query, Num: 2 * topK})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-KEY", b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper error (%d): %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed serperResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	organic := parsed.Organic
	if len(organic) > 2*topK {
		organic = organic[:2*topK]
	}

	results := make([]SearchResult, 0, topK)
	for _, item := range organic {
		snippet := item.Snippet
		if snippet == "" {
			snippet = item.Title
		}
		if snippet == "" || item.Link == "" {
			continue
		}
		if !IsSafe(snippet) || !IsSafe(item.Link) {
			slog.Debug("filtered unsafe search result", "query", query, "url", item.Link)
			continue
		}
		source := item.Source
		if source == "" {
			source = "web"
		}
		results = append(results, SearchResult{Snippet: snippet, URL: item.Link, Source: source})
		if len(results) >= topK {
			break
		}
	}
	return results, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
