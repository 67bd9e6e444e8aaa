package oidc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/ports"
	"golang.org/x/oauth2"
)

// Refresh implements ports.TokenClient. The call is bounded by the configured
// refresh timeout regardless of the caller's deadline.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenGrant, error) {
	if refreshToken == "" {
		return domainauth.TokenGrant{}, errors.New("refresh token is required")
	}

	ctx, cancel := context.WithTimeout(ctx, p.refreshTimeout)
	defer cancel()

	// An expired token with only a refresh token forces the refresh grant.
	src := p.refreshConfig.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return domainauth.TokenGrant{}, mapRefreshError(err)
	}
	return grantFromToken(tok, time.Now()), nil
}

// mapRefreshError converts oauth2 failures into the domain refresh errors.
func mapRefreshError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		rejected := domainauth.NewRefreshRejectedError(status, re.Body)
		if rejected.Code == "" {
			rejected.Code = re.ErrorCode
			rejected.Description = re.ErrorDescription
		}
		return rejected
	}

	var ue *url.Error
	var ne net.Error
	if errors.As(err, &ue) || errors.As(err, &ne) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &domainauth.RefreshTransportError{Err: err}
	}
	return fmt.Errorf("refresh token: %w", err)
}

// EndSessionURL implements ports.TokenClient.
func (p *Provider) EndSessionURL(in ports.EndSessionInput) (string, error) {
	if p.endSessionURL == "" {
		return "", errors.New("end session endpoint is not configured")
	}
	u, err := url.Parse(p.endSessionURL)
	if err != nil {
		return "", fmt.Errorf("parse end session endpoint: %w", err)
	}
	q := u.Query()
	if in.IDToken != "" {
		q.Set("id_token_hint", in.IDToken)
	}
	if in.PostLogoutRedirectURL != "" {
		q.Set("post_logout_redirect_uri", in.PostLogoutRedirectURL)
	}
	q.Set("client_id", p.clientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// EndSession implements ports.TokenClient by calling the end-session endpoint
// server-side. Redirect responses count as success.
func (p *Provider) EndSession(ctx context.Context, in ports.EndSessionInput) error {
	if in.IDToken == "" {
		return errors.New("id token is required")
	}
	target, err := p.EndSessionURL(in)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.refreshTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build end session request: %w", err)
	}

	client := *p.httpClient
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("end session: unexpected status %d", resp.StatusCode)
	}
	p.logger.DebugContext(ctx, "provider session ended", "status", resp.StatusCode)
	return nil
}

// grantFromToken maps an oauth2 token response into a TokenGrant.
func grantFromToken(tok *oauth2.Token, now time.Time) domainauth.TokenGrant {
	g := domainauth.TokenGrant{
		AccessToken:      tok.AccessToken,
		RefreshToken:     tok.RefreshToken,
		ExpiresIn:        extraInt(tok, "expires_in"),
		RefreshExpiresIn: extraInt(tok, "refresh_expires_in"),
	}
	if id, ok := tok.Extra("id_token").(string); ok {
		g.IDToken = id
	}
	if g.ExpiresIn == 0 && !tok.Expiry.IsZero() {
		g.ExpiresIn = int64(tok.Expiry.Sub(now).Round(time.Second) / time.Second)
	}
	return g
}

// extraInt reads a numeric field from the raw token response. JSON responses
// carry float64; form-encoded responses carry strings.
func extraInt(tok *oauth2.Token, key string) int64 {
	switch v := tok.Extra(key).(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n
		}
	}
	return 0
}
