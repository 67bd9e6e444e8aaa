package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	healthResponse   = `{"status":"ok"}`
	degradedResponse = `{"status":"degraded"}`

	healthCheckTimeout = 2 * time.Second
)

// HealthCheck reports whether a dependency (the session store) is reachable.
type HealthCheck func(ctx context.Context) error

// healthHandler returns 200 when check passes (or is nil) and 503 otherwise.
func healthHandler(check HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, healthResponse
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				logger.WarnContext(r.Context(), "health check failed", "error", err)
				status, body = http.StatusServiceUnavailable, degradedResponse
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.WriteString(w, body); err != nil {
			// Nothing more to do if the client connection is gone.
			return
		}
	}
}
