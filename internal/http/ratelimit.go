package httpx

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// limiterIdleSweep is how often idle per-key limiters are dropped.
const limiterIdleSweep = 5 * time.Minute

// KeyExtractor returns the key requests are grouped by.
type KeyExtractor func(*http.Request) string

// ClientIP extracts the client IP, honouring X-Forwarded-For and X-Real-IP
// set by the ingress in front of the portal.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// rateLimiter manages rate limiters for different keys.
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	actual, _ := rl.limiters.LoadOrStore(key, rate.NewLimiter(rl.rate, rl.burst))
	rl.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose bucket has refilled, i.e. idle keys.
func (rl *rateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < limiterIdleSweep {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimit limits requests per key. Rejected requests get 429 with Retry-After.
// A non-positive RequestsPerWindow disables limiting.
func RateLimit(cfg RateLimitConfig, key KeyExtractor, logger *slog.Logger) func(http.Handler) http.Handler {
	if cfg.RequestsPerWindow <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = max(cfg.RequestsPerWindow, 1)
	}
	rl := &rateLimiter{
		rate:        rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:       cfg.Burst,
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			limiter := rl.getLimiter(k)
			if !limiter.Allow() {
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()
				retryAfter := max(int(delay.Seconds()), 1)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				logger.WarnContext(r.Context(), "rate limit exceeded",
					"key", k, "path", r.URL.Path, "retry_after", retryAfter)
				WriteJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":   "rate_limited",
					"message": "Too many requests. Please try again later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
