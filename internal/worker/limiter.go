package worker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter paces outbound HTTP calls per host (search API, fetched
// documents). It is separate from the Scheduler, which paces LLM keys.
type HostLimiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewHostLimiter creates a limiter granting requestsPerSecond per host
func NewHostLimiter(requestsPerSecond float64, burst int) *HostLimiter {
	if burst <= 0 {
		burst = 1
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}

	return &HostLimiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// WaitURL blocks until a request to rawURL's host is allowed
func (l *HostLimiter) WaitURL(ctx context.Context, rawURL string) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}
	return l.get(host).Wait(ctx)
}

// AllowURL reports whether a request to rawURL's host may go out now
func (l *HostLimiter) AllowURL(rawURL string) bool {
	host, err := hostOf(rawURL)
	if err != nil {
		return false
	}
	return l.get(host).Allow()
}

// SetCrawlDelay slows a host to one request per delay, as requested by its
// robots.txt. Delays shorter than the default pace are ignored.
func (l *HostLimiter) SetCrawlDelay(host string, delay time.Duration) {
	if delay <= 0 {
		return
	}
	limit := rate.Every(delay)
	if limit >= l.defaultRate {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters[host] = rate.NewLimiter(limit, 1)
}

func (l *HostLimiter) get(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[host]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[host]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[host] = limiter
	return limiter
}

func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return parsed.Host, nil
}
