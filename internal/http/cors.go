package httpx

import (
	"log/slog"
	"net/http"
	"strings"
)

const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization"
	corsMaxAge       = "86400"
)

// AllowedOrigins matches request origins against exact entries
// ("https://app.example.com") and wildcard subdomain entries ("*.example.com").
type AllowedOrigins []string

// IsAllowedOrigin reports whether origin may make credentialed requests.
func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	if origin == "" || strings.Contains(origin, "..") {
		return false
	}
	for _, allowed := range a {
		if allowed == origin {
			return true
		}
		if domain, ok := strings.CutPrefix(allowed, "*."); ok && matchesSubdomain(origin, domain) {
			return true
		}
	}
	return false
}

// matchesSubdomain checks the origin host (scheme and port ignored) ends in "."+domain.
func matchesSubdomain(origin, domain string) bool {
	host := origin
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.HasSuffix(host, "."+domain)
}

// CORS answers preflight requests and adds credentialed CORS headers for
// allowed origins. Requests without an Origin header pass through untouched;
// disallowed origins get no CORS headers and the browser blocks the response.
func CORS(origins AllowedOrigins, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := origins.IsAllowedOrigin(origin)
			if origin != "" && !allowed {
				logger.WarnContext(r.Context(), "cors: origin rejected", "origin", origin, "path", r.URL.Path)
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				if allowed {
					w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
					w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
					w.Header().Set("Access-Control-Max-Age", corsMaxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
