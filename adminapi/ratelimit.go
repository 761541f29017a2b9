package adminapi

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRateLimitPerMinute and DefaultRateLimitBurst bound the
// diagnostics surface's request rate per client when a Server doesn't
// override them: generous enough for a dashboard polling every
// endpoint every few seconds, tight enough to stop a runaway client
// from hammering a CTM/RouterMonitor snapshot read in a tight loop.
const (
	DefaultRateLimitPerMinute = 600
	DefaultRateLimitBurst     = 30
)

// clientLimiter is a per-client token bucket rate limiter, the
// diagnostics-surface analogue of the teacher's per-client
// RateLimiter, trimmed to IP-only identification since this surface
// has no API key concept.
type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newClientLimiter(requestsPerMinute, burst int) *clientLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRateLimitPerMinute
	}
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}
	return &clientLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
	}
}

func (cl *clientLimiter) allow(clientID string) bool {
	cl.mu.Lock()
	l, ok := cl.limiters[clientID]
	if !ok {
		l = rate.NewLimiter(cl.rate, cl.burst)
		cl.limiters[clientID] = l
	}
	cl.mu.Unlock()
	return l.Allow()
}

// cleanup drops limiters sitting at full burst (unused since the last
// cleanup interval), so a long-running process doesn't accumulate one
// entry per distinct client IP it has ever seen.
func (cl *clientLimiter) cleanup() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	now := time.Now()
	for id, l := range cl.limiters {
		if l.TokensAt(now) == float64(cl.burst) {
			delete(cl.limiters, id)
		}
	}
}

// rateLimitMiddleware rejects requests beyond requestsPerMinute/burst
// per client IP with 429, starting a background cleanup goroutine tied
// to the returned stop function.
func rateLimitMiddleware(requestsPerMinute, burst int) (func(http.Handler) http.Handler, func()) {
	limiter := newClientLimiter(requestsPerMinute, burst)

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.cleanup()
			case <-stop:
				return
			}
		}
	}()

	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(clientID(r)) {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	return mw, func() { close(stop) }
}

func clientID(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
