package pipeline

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/ppiankov/claimcheck/internal/extract"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/util"
	"github.com/ppiankov/claimcheck/internal/worker"
)

const fetchMaxRetries = 3

// minArticleChars is the shortest readability output trusted over plain
// visible-text extraction
const minArticleChars = 100

// fetchSleepFunc is the sleep function used between retries (injectable for tests)
var fetchSleepFunc = time.Sleep

// ErrDisallowed is returned when robots.txt forbids fetching a URL
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Fetcher fetches a document to check from a URL
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker
	limiter    *worker.HostLimiter
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, insecureTLS bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
	}
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via http.insecure_tls
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// NewFetcherFromConfig builds a fetcher from the http config section.
// limiter may be nil.
func NewFetcherFromConfig(cfg model.HTTPConfig, limiter *worker.HostLimiter) *Fetcher {
	f := NewFetcher(cfg.Timeout, cfg.UserAgent, cfg.MaxBodyBytes, cfg.InsecureTLS, cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(cfg.UserAgent, f.httpClient)
	}
	f.limiter = limiter
	return f
}

// FetchResult contains the fetched document
type FetchResult struct {
	HTML     string // Raw body
	Text     string // Text to fact-check
	Title    string
	FinalURL string
}

// Fetch retrieves rawURL and extracts its readable text
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
		}
		if f.limiter != nil && delay > 0 {
			if parsed, err := url.Parse(rawURL); err == nil {
				f.limiter.SetCrawlDelay(parsed.Host, delay)
			}
		}
	}
	if f.limiter != nil {
		if err := f.limiter.WaitURL(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	result := &FetchResult{
		HTML:     string(body),
		FinalURL: resp.Request.URL.String(),
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/plain" || (mediaType == "" && !extract.LooksLikeHTML(result.HTML)) {
		result.Text = strings.TrimSpace(result.HTML)
		return result, nil
	}

	result.Title, result.Text = readableText(body, resp.Request.URL)
	if result.Text == "" {
		text, err := extract.VisibleText(result.HTML)
		if err != nil {
			return nil, fmt.Errorf("extract text: %w", err)
		}
		result.Text = text
	}
	return result, nil
}

// readableText runs readability over an HTML page. It returns empty text
// when the page has no article worth trusting.
func readableText(body []byte, pageURL *url.URL) (title, text string) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		slog.Debug("readability failed", "url", pageURL.String(), "error", err)
		return "", ""
	}
	text = strings.TrimSpace(article.TextContent)
	if len([]rune(text)) < minArticleChars {
		return article.Title, ""
	}
	return article.Title, text
}

// FetchWithRetry retries transient failures with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < fetchMaxRetries; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) {
			return nil, err
		}
		if attempt < fetchMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			slog.Debug("fetch retry", "url", rawURL, "attempt", attempt+1, "backoff", backoff, "error", err)
			fetchSleepFunc(backoff)
		}
	}
	return nil, lastErr
}

// isRetryableFetchError returns true for server errors, rate limiting and
// transient network failures
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, code := range []string{"status: 500", "status: 502", "status: 503", "status: 504", "status: 429"} {
		if strings.Contains(s, code) {
			return true
		}
	}
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
