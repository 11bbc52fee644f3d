// Package middleware holds the HTTP middleware wrapped around the editor API.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimit configures a RateLimiter.
type RateLimit struct {
	RequestsPerMinute int
	BurstLimit        int
}

// RateLimiter is a token bucket per client IP.
type RateLimiter struct {
	config  RateLimit
	buckets map[string]*tokenBucket
	mutex   sync.Mutex
	now     func() time.Time
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a limiter. Idle buckets are dropped until ctx ends.
func NewRateLimiter(ctx context.Context, config RateLimit) *RateLimiter {
	if config.BurstLimit < 1 {
		config.BurstLimit = 1
	}
	rl := &RateLimiter{
		config:  config,
		buckets: make(map[string]*tokenBucket),
		now:     time.Now,
	}
	go rl.cleanup(ctx, 5*time.Minute)
	return rl
}

// Handler wraps next, answering 429 once a client's bucket is empty.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(ClientIP(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allow takes one token from ip's bucket.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	burst := float64(rl.config.BurstLimit)
	bucket, ok := rl.buckets[ip]
	if !ok {
		bucket = &tokenBucket{tokens: burst, lastRefill: now}
		rl.buckets[ip] = bucket
	}

	perSecond := float64(rl.config.RequestsPerMinute) / 60
	bucket.tokens += now.Sub(bucket.lastRefill).Seconds() * perSecond
	if bucket.tokens > burst {
		bucket.tokens = burst
	}
	bucket.lastRefill = now

	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}

func (rl *RateLimiter) cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.prune(2 * every)
		}
	}
}

// prune drops buckets untouched for longer than idle.
func (rl *RateLimiter) prune(idle time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	cutoff := rl.now().Add(-idle)
	for ip, bucket := range rl.buckets {
		if bucket.lastRefill.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

// ClientIP returns the first valid address of X-Forwarded-For, then
// X-Real-IP, then the connection's remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
