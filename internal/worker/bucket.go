package worker

import (
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket paces one resource at requests/window, holding at most burst
// tokens. All methods take an explicit timestamp so the owning scheduler
// decides what "now" is.
type TokenBucket struct {
	limiter *rate.Limiter
	perSec  float64
}

// NewTokenBucket creates a full bucket. A non-positive burst defaults to
// requests.
func NewTokenBucket(requests int, window time.Duration, burst int) *TokenBucket {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if burst <= 0 {
		burst = requests
	}

	perSec := float64(requests) / window.Seconds()
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
		perSec:  perSec,
	}
}

// Tokens returns the refilled token count at now, capped at burst
func (b *TokenBucket) Tokens(now time.Time) float64 {
	return b.limiter.TokensAt(now)
}

// Take deducts one token if at least one is available at now
func (b *TokenBucket) Take(now time.Time) bool {
	return b.limiter.AllowN(now, 1)
}

// WaitFor returns how long until one whole token is available
func (b *TokenBucket) WaitFor(now time.Time) time.Duration {
	tokens := b.Tokens(now)
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) / b.perSec * float64(time.Second))
}

// Burst returns the bucket capacity
func (b *TokenBucket) Burst() int {
	return b.limiter.Burst()
}
