package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/worker"
)

func TestFetchWithRetry_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	result, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.HTML != "<html><body>OK</body></html>" {
		t.Errorf("Unexpected HTML: %s", result.HTML)
	}
}

func TestFetchWithRetry_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html>OK</html>")
	}))
	defer server.Close()

	// Override sleep for fast tests
	origSleep := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {}
	defer func() { fetchSleepFunc = origSleep }()

	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	result, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if result.HTML != "<html>OK</html>" {
		t.Errorf("Unexpected HTML: %s", result.HTML)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_PermanentFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	origSleep := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {}
	defer func() { fetchSleepFunc = origSleep }()

	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	_, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for 404, got nil")
	}
	// 404 is not retryable, so should fail immediately
	if got := err.Error(); got != "unexpected status: 404 404 Not Found" {
		t.Errorf("Unexpected error: %s", got)
	}
}

func TestFetchWithRetry_AllRetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	origSleep := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {}
	defer func() { fetchSleepFunc = origSleep }()

	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	_, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error after all retries exhausted")
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_429Retried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html>OK</html>")
	}))
	defer server.Close()

	origSleep := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {}
	defer func() { fetchSleepFunc = origSleep }()

	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	result, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected success after 429 retry, got %v", err)
	}
	if result.HTML != "<html>OK</html>" {
		t.Errorf("Unexpected HTML: %s", result.HTML)
	}
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		err       string
		retryable bool
	}{
		{"unexpected status: 503 Service Unavailable", true},
		{"unexpected status: 500 Internal Server Error", true},
		{"unexpected status: 502 Bad Gateway", true},
		{"unexpected status: 429 Too Many Requests", true},
		{"unexpected status: 404 Not Found", false},
		{"unexpected status: 403 Forbidden", false},
		{"unexpected status: 401 Unauthorized", false},
		{"fetch: connection refused", true},
		{"fetch: connection reset by peer", true},
		{"create request: invalid URL", false},
		{"read body: unexpected EOF", false},
	}

	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			err := fmt.Errorf("%s", tt.err)
			got := isRetryableFetchError(err)
			if got != tt.retryable {
				t.Errorf("isRetryableFetchError(%q) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestIsRetryableFetchError_Nil(t *testing.T) {
	if isRetryableFetchError(nil) {
		t.Error("Expected nil error to not be retryable")
	}
}

func TestFetch_ExtractsArticleText(t *testing.T) {
	paragraph := strings.Repeat("Mary Smith moved to Oslo in 2019 and has taught piano there ever since. ", 6)
	page := fmt.Sprintf(`<html><head><title>Mary Smith</title></head><body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article><h1>Mary Smith</h1><p>%s</p><p>%s</p></article>
<footer>Copyright</footer></body></html>`, paragraph, paragraph)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, page)
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	result, err := fetcher.Fetch(context.Background(), server.URL+"/mary")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(result.Text, "moved to Oslo in 2019") {
		t.Errorf("Expected article text, got %q", result.Text)
	}
	if strings.Contains(result.Text, "<p>") {
		t.Errorf("Expected text without markup, got %q", result.Text)
	}
}

func TestFetch_ShortPageFallsBackToVisibleText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body><p>Mary is five.</p><script>var x = 1;</script></body></html>")
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	result, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Text != "Mary is five." {
		t.Errorf("Expected visible text, got %q", result.Text)
	}
}

func TestFetch_PlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprint(w, "  Mary is five. <b>not html</b>\n")
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	result, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Text != "Mary is five. <b>not html</b>" {
		t.Errorf("Expected body as text, got %q", result.Text)
	}
}

func TestFetch_RespectsRobots(t *testing.T) {
	var pageHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		pageHits.Add(1)
		_, _ = fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	cfg := model.DefaultConfig().HTTP
	cfg.Timeout = 5 * time.Second
	fetcher := NewFetcherFromConfig(cfg, worker.NewHostLimiter(100, 10))

	_, err := fetcher.Fetch(context.Background(), server.URL+"/private/page")
	if !errors.Is(err, ErrDisallowed) {
		t.Fatalf("Expected ErrDisallowed, got %v", err)
	}
	if pageHits.Load() != 0 {
		t.Errorf("Expected no page request, got %d", pageHits.Load())
	}

	if _, err := fetcher.Fetch(context.Background(), server.URL+"/public"); err != nil {
		t.Fatalf("Expected public page to be fetched, got %v", err)
	}
	if pageHits.Load() != 1 {
		t.Errorf("Expected 1 page request, got %d", pageHits.Load())
	}
}

func TestFetchWithRetry_DisallowedNotRetried(t *testing.T) {
	var robotsHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		robotsHits.Add(1)
		_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /\n")
	}))
	defer server.Close()

	cfg := model.DefaultConfig().HTTP
	fetcher := NewFetcherFromConfig(cfg, nil)

	_, err := fetcher.FetchWithRetry(context.Background(), server.URL+"/page")
	if !errors.Is(err, ErrDisallowed) {
		t.Fatalf("Expected ErrDisallowed, got %v", err)
	}
	if robotsHits.Load() != 1 {
		t.Errorf("Expected a single robots.txt request, got %d", robotsHits.Load())
	}
}
