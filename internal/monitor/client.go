// Package monitor implements the client token monitor: a poller that checks the
// portal's session boundary API and tears the client session down when the
// server reports it invalid.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxBodyBytes          = 64 << 10
)

// Status is the result of one validate-session check.
type Status struct {
	Valid bool
	// Kind is the error the portal reported for an invalid session ("NoSession"
	// when no record exists).
	Kind string
}

// LogoutResult mirrors the portal's logout response body.
type LogoutResult struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

// UnexpectedStatusError is returned when the portal answers with a status the
// monitor does not interpret as valid or invalid.
type UnexpectedStatusError struct {
	Op     string
	Status int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// BaseURL is the portal origin, e.g. http://localhost:8080 (required).
	BaseURL string
	// HTTPClient overrides the default client; it should carry a cookie jar.
	HTTPClient *http.Client
	// Timeout bounds each request made with the default client.
	Timeout time.Duration
	// SessionCookieName is the portal's session cookie (default portal_session).
	SessionCookieName string
	Logger            *slog.Logger
}

// Client calls the portal's session boundary API with a cookie-carrying HTTP client.
type Client struct {
	base          *url.URL
	http          *http.Client
	sessionCookie string
	logger        *slog.Logger
}

// NewClient creates a boundary API client. Without an HTTPClient it builds one
// with a public-suffix aware cookie jar so session cookies stay scoped to the portal.
func NewClient(opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		jar, jarErr := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if jarErr != nil {
			return nil, fmt.Errorf("create cookie jar: %w", jarErr)
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		hc = &http.Client{Jar: jar, Timeout: timeout}
	}

	name := opts.SessionCookieName
	if name == "" {
		name = "portal_session"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:          base,
		http:          hc,
		sessionCookie: name,
		logger:        logger.With("component", "monitor_client"),
	}, nil
}

// BaseURL returns the portal origin.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// SetSession stores sessionID in the cookie jar, as a browser would after login.
func (c *Client) SetSession(sessionID string) error {
	if c.http.Jar == nil {
		return errors.New("http client has no cookie jar")
	}
	c.http.Jar.SetCookies(c.base, []*http.Cookie{{Name: c.sessionCookie, Value: sessionID, Path: "/"}})
	return nil
}

// SignOut drops the portal cookies held in the jar. It satisfies LocalSession.
func (c *Client) SignOut(context.Context) error {
	if c.http.Jar == nil {
		return nil
	}
	cookies := c.http.Jar.Cookies(c.base)
	expired := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		expired = append(expired, &http.Cookie{Name: ck.Name, Path: "/", MaxAge: -1})
	}
	c.http.Jar.SetCookies(c.base, expired)
	return nil
}

// ValidateSession checks GET /validate-session. Only a 401 reports an invalid
// session; any other non-200 answer is an error so a flapping portal never
// triggers a teardown.
func (c *Client) ValidateSession(ctx context.Context) (Status, error) {
	resp, err := c.do(ctx, http.MethodGet, "/validate-session")
	if err != nil {
		return Status{}, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return Status{Valid: true}, nil
	case http.StatusUnauthorized:
		var body struct {
			Error string `json:"error"`
		}
		if decErr := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); decErr != nil {
			c.logger.DebugContext(ctx, "validate-session: undecodable 401 body", "error", decErr)
		}
		return Status{Kind: body.Error}, nil
	default:
		return Status{}, &UnexpectedStatusError{Op: "validate-session", Status: resp.StatusCode}
	}
}

// ClearCookie calls POST /cookie/clear.
func (c *Client) ClearCookie(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/cookie/clear")
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return &UnexpectedStatusError{Op: "cookie/clear", Status: resp.StatusCode}
	}
	return nil
}

// Logout calls GET /logout and returns the portal's report.
func (c *Client) Logout(ctx context.Context) (LogoutResult, error) {
	resp, err := c.do(ctx, http.MethodGet, "/logout")
	if err != nil {
		return LogoutResult{}, err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return LogoutResult{}, &UnexpectedStatusError{Op: "logout", Status: resp.StatusCode}
	}
	var res LogoutResult
	if decErr := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&res); decErr != nil {
		return LogoutResult{}, fmt.Errorf("decode logout response: %w", decErr)
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
}
