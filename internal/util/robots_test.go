package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func robotsServer(t *testing.T, body string, status int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRobotsChecker_CanFetch(t *testing.T) {
	body := "User-agent: claimcheck\nDisallow: /private\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n"
	server := robotsServer(t, body, http.StatusOK, nil)
	checker := NewRobotsChecker("claimcheck/0.3 (+https://github.com/ppiankov/claimcheck)", server.Client())

	allowed, delay, err := checker.CanFetch(context.Background(), server.URL+"/articles/1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !allowed {
		t.Error("Expected /articles/1 to be allowed")
	}
	if delay != 2*time.Second {
		t.Errorf("Expected crawl delay 2s, got %v", delay)
	}

	allowed, _, err = checker.CanFetch(context.Background(), server.URL+"/private/notes")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if allowed {
		t.Error("Expected /private/notes to be disallowed")
	}
}

func TestRobotsChecker_OtherAgentsBlocked(t *testing.T) {
	server := robotsServer(t, "User-agent: *\nDisallow: /\n", http.StatusOK, nil)
	checker := NewRobotsChecker("claimcheck/0.3", server.Client())

	allowed, _, err := checker.CanFetch(context.Background(), server.URL+"/page")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if allowed {
		t.Error("Expected wildcard disallow to apply")
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := robotsServer(t, "", http.StatusNotFound, nil)
	checker := NewRobotsChecker("claimcheck", server.Client())

	allowed, _, err := checker.CanFetch(context.Background(), server.URL+"/anything")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !allowed {
		t.Error("Expected missing robots.txt to allow everything")
	}
}

func TestRobotsChecker_CachesPerHost(t *testing.T) {
	var hits atomic.Int32
	server := robotsServer(t, "User-agent: *\nAllow: /\n", http.StatusOK, &hits)
	checker := NewRobotsChecker("claimcheck", server.Client())

	for i := 0; i < 3; i++ {
		if _, _, err := checker.CanFetch(context.Background(), server.URL+"/page"); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("Expected 1 robots.txt fetch, got %d", hits.Load())
	}

	checker.Clear()
	if _, _, err := checker.CanFetch(context.Background(), server.URL+"/page"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("Expected refetch after Clear, got %d fetches", hits.Load())
	}
}

func TestRobotsChecker_UnsupportedScheme(t *testing.T) {
	checker := NewRobotsChecker("claimcheck", nil)
	if _, _, err := checker.CanFetch(context.Background(), "ftp://example.com/file"); err == nil {
		t.Error("Expected error for ftp URL")
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	tests := map[string]string{
		"claimcheck/0.3 (+https://github.com/ppiankov/claimcheck)": "claimcheck",
		"Mozilla/5.0": "Mozilla",
		"":            "",
	}
	for in, want := range tests {
		if got := NormalizeUserAgent(in); got != want {
			t.Errorf("NormalizeUserAgent(%q) = %q, want %q", in, got, want)
		}
	}
}
