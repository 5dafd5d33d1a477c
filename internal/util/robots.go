package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

const robotsTTL = time.Hour

// RobotsChecker checks robots.txt compliance before a document fetch.
// Parsed files are kept per host for an hour.
type RobotsChecker struct {
	cache      *gocache.Cache
	httpClient *http.Client
	userAgent  string
}

// NewRobotsChecker creates a checker that fetches robots.txt with client
func NewRobotsChecker(userAgent string, client *http.Client) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsChecker{
		cache:      gocache.New(robotsTTL, 2*robotsTTL),
		httpClient: client,
		userAgent:  NormalizeUserAgent(userAgent),
	}
}

// CanFetch checks if the URL can be fetched according to robots.txt.
// Returns (allowed, crawlDelay, error). An unreachable robots.txt allows
// the fetch.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false, 0, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, parsed.Host)

	data, err := r.getRobotsData(ctx, parsed.Host, robotsURL)
	if err != nil {
		return true, 0, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}

	allowed := data.TestAgent(path, r.userAgent)

	var crawlDelay time.Duration
	if group := data.FindGroup(r.userAgent); group != nil {
		crawlDelay = group.CrawlDelay
	}
	return allowed, crawlDelay, nil
}

func (r *RobotsChecker) getRobotsData(ctx context.Context, host, robotsURL string) (*robotstxt.RobotsData, error) {
	if cached, ok := r.cache.Get(host); ok {
		return cached.(*robotstxt.RobotsData), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// FromResponse maps 4xx to allow-all and 5xx to disallow-all
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.cache.SetDefault(host, data)
	return data, nil
}

// Clear clears the robots.txt cache
func (r *RobotsChecker) Clear() {
	r.cache.Flush()
}

// NormalizeUserAgent returns the product token of a user agent string,
// which is what robots.txt groups are matched against
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) > 0 {
		return strings.Split(parts[0], "/")[0]
	}
	return ua
}
