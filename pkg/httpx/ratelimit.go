package httpx

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/veloramarket/velora/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters for one budget.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window.
	RequestsPerWindow int
	// Window is the time window for rate limiting.
	Window time.Duration
	// Burst allows for temporary bursts above the steady rate.
	Burst int
}

// Budgets used across the services. The edge pair encodes the trust gap
// between verified principals and anonymous IPs (1000 vs 150 per 5 minutes).
// Each can be overridden via RATELIMIT_{name}_{REQUESTS,WINDOW_SEC,BURST}.
var (
	// StrictLimit guards credential-bearing endpoints against brute force.
	StrictLimit = RateLimitConfig{
		RequestsPerWindow: 5,
		Window:            time.Minute,
		Burst:             5,
	}

	// ModerateLimit for authenticated operations.
	ModerateLimit = RateLimitConfig{
		RequestsPerWindow: 20,
		Window:            time.Minute,
		Burst:             20,
	}

	// LenientLimit for less sensitive operations such as health checks.
	LenientLimit = RateLimitConfig{
		RequestsPerWindow: 100,
		Window:            time.Minute,
		Burst:             100,
	}

	// EdgeAnonymousLimit applies to unauthenticated traffic at the gateway.
	EdgeAnonymousLimit = RateLimitConfig{
		RequestsPerWindow: 150,
		Window:            5 * time.Minute,
		Burst:             150,
	}

	// EdgeAuthenticatedLimit applies per principal once a token verified.
	EdgeAuthenticatedLimit = RateLimitConfig{
		RequestsPerWindow: 1000,
		Window:            5 * time.Minute,
		Burst:             1000,
	}
)

func init() {
	StrictLimit = ParseRateLimitFromEnv("STRICT", StrictLimit)
	ModerateLimit = ParseRateLimitFromEnv("MODERATE", ModerateLimit)
	LenientLimit = ParseRateLimitFromEnv("LENIENT", LenientLimit)
	EdgeAnonymousLimit = ParseRateLimitFromEnv("EDGE_ANON", EdgeAnonymousLimit)
	EdgeAuthenticatedLimit = ParseRateLimitFromEnv("EDGE_AUTH", EdgeAuthenticatedLimit)
}

// ParseRateLimitFromEnv reads a budget override from environment variables
// following the pattern RATELIMIT_{prefix}_{REQUESTS,WINDOW_SEC,BURST}.
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}
	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}
	if val := os.Getenv("RATELIMIT_" + prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// KeyExtractor derives the grouping key for rate limiting from a request.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request,
// honoring X-Forwarded-For and X-Real-IP for proxied traffic.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// PrincipalKeyExtractor returns the authenticated principal id, or "".
func PrincipalKeyExtractor(r *http.Request) string {
	if auth, ok := AuthFromContext(r.Context()); ok {
		return auth.PrincipalID
	}
	return ""
}

// limiterPool manages per-key token buckets for one budget.
type limiterPool struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

func newLimiterPool(config RateLimitConfig) *limiterPool {
	return &limiterPool{
		rate:        rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds()),
		burst:       config.Burst,
		lastCleanup: time.Now(),
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	if limiter, ok := p.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(p.rate, p.burst)
	actual, _ := p.limiters.LoadOrStore(key, limiter)

	p.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose buckets are full again, which means the
// key has been idle for at least a window. Keeps ephemeral keys from
// accumulating forever.
func (p *limiterPool) maybeCleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.lastCleanup) < 5*time.Minute {
		return
	}
	p.lastCleanup = time.Now()

	p.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(p.burst) {
			p.limiters.Delete(key)
		}
		return true
	})
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, pool *limiterPool, config RateLimitConfig, key string) {
	limiter := pool.get(key)
	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel() // only probing for Retry-After

	retryAfter := max(int(delay.Seconds()), 1)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Window", config.Window.String())

	slogx.FromContext(r.Context()).Warn("rate limit exceeded",
		"key", key,
		"endpoint", r.URL.Path,
		"retry_after", retryAfter,
	)

	// Deliberately outside the error taxonomy: a static body, nothing more.
	WriteJSON(w, http.StatusTooManyRequests, map[string]string{
		"error":             "rate_limit_exceeded",
		"error_description": "Too many requests. Please try again later.",
	})
}

// RateLimitMiddleware enforces one budget grouped by keyExtractor.
func RateLimitMiddleware(config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	pool := newLimiterPool(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyExtractor(r)
			if key == "" {
				// No key means no grouping; allow but note it.
				slogx.FromContext(r.Context()).Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			if !pool.get(key).Allow() {
				rejectRateLimited(w, r, pool, config, key)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits by client IP only.
func RateLimitByIP(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(config, IPKeyExtractor)
}

// EdgeRateLimit is the gateway's hard limit: authenticated requests draw
// from a per-principal budget, anonymous ones from a per-IP budget roughly
// 6.7x smaller.
func EdgeRateLimit(anonymous, authenticated RateLimitConfig) Middleware {
	anonPool := newLimiterPool(anonymous)
	authPool := newLimiterPool(authenticated)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pool, config := anonPool, anonymous
			key := IPKeyExtractor(r)

			if principal := PrincipalKeyExtractor(r); principal != "" {
				pool, config = authPool, authenticated
				key = principal
			}

			if !pool.get(key).Allow() {
				rejectRateLimited(w, r, pool, config, key)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
