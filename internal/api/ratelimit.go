package api

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// tokenBucket is a refilling token bucket. It backs the per-IP request
// limiter and, standalone, the per-connection WebSocket message limiter.
type tokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	last     time.Time
}

func newTokenBucket(capacity, rate float64) *tokenBucket {
	return &tokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     rate,
		last:     time.Now(),
	}
}

// refillLocked credits tokens for the time elapsed since the last call.
// Callers must hold mu.
func (tb *tokenBucket) refillLocked(now time.Time) {
	tb.tokens = min(tb.capacity, tb.tokens+now.Sub(tb.last).Seconds()*tb.rate)
	tb.last = now
}

// allow consumes one token if available.
func (tb *tokenBucket) allow() bool {
	ok, _, _ := tb.take()
	return ok
}

// take consumes one token if available and reports the tokens left after
// the take plus the time at which the bucket is full again.
func (tb *tokenBucket) take() (ok bool, remaining int, reset time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	tb.refillLocked(now)

	if tb.tokens >= 1.0 {
		tb.tokens--
		ok = true
	}
	remaining = int(tb.tokens)

	if tb.tokens >= tb.capacity {
		return ok, remaining, now
	}
	wait := (tb.capacity - tb.tokens) / tb.rate
	return ok, remaining, now.Add(time.Duration(wait * float64(time.Second)))
}

// staleSince reports whether the bucket has been idle since before the
// cutoff.
func (tb *tokenBucket) staleSince(cutoff time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.last.Before(cutoff)
}

// RateLimiter applies a per-client-IP token bucket to incoming requests.
type RateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*tokenBucket
	config  RateLimiterConfig
	idleTTL time.Duration
}

// NewRateLimiter creates a rate limiter and starts its bucket janitor.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		config:  config,
		idleTTL: 5 * time.Minute,
	}
	go rl.evictIdle()
	return rl
}

func (rl *RateLimiter) bucketFor(ip string) *tokenBucket {
	rl.mu.RLock()
	b, ok := rl.buckets[ip]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok := rl.buckets[ip]; ok {
		return b
	}
	b = newTokenBucket(float64(rl.config.BurstSize), float64(rl.config.RequestsPerMinute)/60.0)
	rl.buckets[ip] = b
	return b
}

// evictIdle drops buckets for clients that have gone quiet.
func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-rl.idleTTL)
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			if b.staleSince(cutoff) {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow reports whether a request from ip fits its budget.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.bucketFor(ip).allow()
}

// Middleware enforces the per-IP budget and sets X-RateLimit headers.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		ok, remaining, reset := rl.bucketFor(ip).take()

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.config.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))

		if !ok {
			retryAfter := int(time.Until(reset).Seconds()) + 1
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))

			respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP address from the request.
// Checks X-Forwarded-For and X-Real-IP headers before falling back to
// RemoteAddr, validating the IP format at each step.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For: client, proxy1, proxy2 -- take the leftmost IP.
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			clientIP := strings.TrimSpace(ips[0])
			if isValidIP(clientIP) {
				return clientIP
			}
		}
	}

	realIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if realIP != "" && isValidIP(realIP) {
		return realIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr may already be a bare IP without a port.
		ip = r.RemoteAddr
	}
	if isValidIP(ip) {
		return ip
	}

	return "unknown"
}

// isValidIP checks if a string is a valid IPv4 or IPv6 address.
func isValidIP(ipStr string) bool {
	return net.ParseIP(ipStr) != nil
}
