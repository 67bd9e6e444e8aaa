package httpx

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Template paths used for loading templates in tests and production.
const (
	TemplatePathFromRoot = "frontend/templates"       // From project root
	TemplatePathFromTest = "../../frontend/templates" // From internal/http test files
)

// TemplateRenderer renders the portal's HTML pages.
type TemplateRenderer struct {
	t      *template.Template
	logger *slog.Logger
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS        // Filesystem containing templates (required)
	Logger     *slog.Logger // Logger for template errors (optional)
}

// NewTemplateRenderer parses layout and page templates from cfg.TemplateFS.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t, err := template.New("root").Funcs(templateFuncs()).ParseFS(cfg.TemplateFS, "*.tmpl", "pages/*.tmpl")
	if err != nil {
		logger.Error("template parsing failed",
			slog.Any("error", err),
			slog.String("phase", "initialization"),
		)
		return nil, err
	}
	return &TemplateRenderer{t: t, logger: logger}, nil
}

// Render executes the named page template and writes it with status.
// Output is buffered so a template error never produces a half-written page.
func (r *TemplateRenderer) Render(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := r.t.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.Error("template execution failed",
			slog.String("template", name),
			slog.Any("error", err),
		)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.Error("failed to write rendered template",
			slog.String("template", name),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"initial": initial,
		"join":    strings.Join,
		"year":    func() int { return time.Now().Year() },
		"millis":  func(d time.Duration) int64 { return d.Milliseconds() },
	}
}

// initial returns the upper-cased first letter of s, used for logo placeholders.
func initial(s string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(s))
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}
