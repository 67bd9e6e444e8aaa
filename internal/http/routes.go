package httpx

import (
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	ssoportal "github.com/vss/sso-portal"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth    AuthServiceInterface
	Catalog CatalogServiceInterface
	Cookies CookieConfig

	// AllowedOrigins may call the cookie and token endpoints cross-origin.
	AllowedOrigins []string
	// LoginRateLimit applies per client IP to /auth/login and /cookie/set.
	LoginRateLimit RateLimitConfig
	// MonitorInterval is handed to the dashboard's session poller.
	MonitorInterval time.Duration
	// Health checks the session store for /healthz (optional).
	Health HealthCheck

	IsDev  bool         // Serve templates and static files from disk
	Logger *slog.Logger // Logger for template and HTTP errors (optional)
}

// NewRouter creates and configures the portal's HTTP handler.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{Svc: services.Auth, Cookies: services.Cookies, Logger: logger}
	sessionHandlers := &SessionHandlers{Svc: services.Auth, Cookies: services.Cookies, Logger: logger}
	pageHandlers := &PageHandlers{
		Auth:            services.Auth,
		Catalog:         services.Catalog,
		Renderer:        setupRenderer(services.IsDev, logger),
		Cookies:         services.Cookies,
		MonitorInterval: services.MonitorInterval,
		Logger:          logger,
	}

	health := healthHandler(services.Health, logger)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
	mux.Handle("GET /static/", staticHandler(services.IsDev, logger))

	registerAuthRoutes(mux, authHandlers, services.LoginRateLimit, logger)
	registerSessionRoutes(mux, sessionHandlers, services, logger)
	registerPageRoutes(mux, pageHandlers, GuardOptions{Auth: services.Auth, Cookies: services.Cookies, Logger: logger})

	return Chain(mux, Recover(logger), Logging(logger), BrowserDetection())
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, limit RateLimitConfig, logger *slog.Logger) {
	limited := RateLimit(limit, ClientIP, logger)
	mux.Handle("GET /auth/login", limited(http.HandlerFunc(h.Login)))
	mux.HandleFunc("GET /auth/callback", h.Callback)
}

func registerSessionRoutes(mux *http.ServeMux, h *SessionHandlers, services RouterServices, logger *slog.Logger) {
	cors := CORS(AllowedOrigins(services.AllowedOrigins), logger)
	limited := RateLimit(services.LoginRateLimit, ClientIP, logger)

	mux.HandleFunc("GET /validate-session", h.ValidateSession)
	mux.HandleFunc("GET /logout", h.Logout)
	mux.HandleFunc("POST /logout", h.Logout)

	// OPTIONS is answered by the CORS filter itself.
	setCookie := cors(limited(http.HandlerFunc(h.SetCookie)))
	mux.Handle("POST /cookie/set", setCookie)
	mux.Handle("OPTIONS /cookie/set", setCookie)

	clearCookie := cors(http.HandlerFunc(h.ClearCookie))
	mux.Handle("POST /cookie/clear", clearCookie)
	mux.Handle("OPTIONS /cookie/clear", clearCookie)

	validateToken := cors(http.HandlerFunc(h.ValidateToken))
	mux.Handle("GET /auth/validate-token", validateToken)
	mux.Handle("OPTIONS /auth/validate-token", validateToken)
}

func registerPageRoutes(mux *http.ServeMux, h *PageHandlers, guard GuardOptions) {
	mux.HandleFunc("GET /login", h.Login)
	mux.HandleFunc("GET /error", h.Error)

	protected := RequireSession(guard)
	mux.Handle("GET /{$}", protected(http.HandlerFunc(h.Dashboard)))
	mux.Handle("GET /dashboard", protected(http.HandlerFunc(h.Dashboard)))
	mux.Handle("GET /api/me", protected(http.HandlerFunc(h.Me)))
	mux.Handle("GET /apps/{id}/launch", protected(http.HandlerFunc(h.Launch)))
}

// setupRenderer loads templates from disk in dev mode and from the embedded FS otherwise.
// A nil renderer degrades pages to plain-text status responses.
func setupRenderer(isDev bool, logger *slog.Logger) *TemplateRenderer {
	var templateFS fs.FS
	if isDev {
		templateFS = os.DirFS(TemplatePathFromRoot)
	} else {
		sub, err := fs.Sub(ssoportal.TemplateFS, "frontend/templates")
		if err != nil {
			logger.Error("failed to create sub-filesystem for templates", slog.Any("error", err))
			return nil
		}
		templateFS = sub
	}

	tr, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: templateFS, Logger: logger})
	if err != nil {
		logger.Error("failed to create template renderer", slog.Any("error", err))
		return nil
	}
	return tr
}

// staticHandler serves /static/* from disk in dev mode and from the embedded FS otherwise.
func staticHandler(isDev bool, logger *slog.Logger) http.Handler {
	var files http.FileSystem = http.Dir("frontend/static")
	if !isDev {
		sub, err := fs.Sub(ssoportal.StaticFS, "frontend/static")
		if err != nil {
			logger.Error("failed to create sub-filesystem for static assets", slog.Any("error", err))
		} else {
			files = http.FS(sub)
		}
	}
	fileServer := http.StripPrefix("/static/", http.FileServer(files))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isDev {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}
		fileServer.ServeHTTP(w, r)
	})
}
