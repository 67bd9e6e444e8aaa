package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// ClassifyRefreshError maps a failed refresh to exactly one ErrorKind.
//
// Order matters: "invalid_grant", as the OAuth2 error code or anywhere in the
// response body, wins over the status code, so a 400 invalid_grant is
// RefreshTokenInactive rather than InvalidRefreshToken.
func ClassifyRefreshError(err error) ErrorKind {
	if err == nil {
		return ErrorNone
	}

	var rejected *RefreshRejectedError
	if errors.As(err, &rejected) {
		switch {
		case rejected.Code == "invalid_grant", strings.Contains(rejected.Body, "invalid_grant"):
			return ErrRefreshTokenInactive
		case rejected.Status == http.StatusUnauthorized:
			return ErrRefreshTokenExpired
		case rejected.Status == http.StatusBadRequest:
			return ErrInvalidRefreshToken
		default:
			return ErrRefreshAccessToken
		}
	}

	var transport *RefreshTransportError
	if errors.As(err, &transport) {
		return ErrRefreshTokenNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrRefreshTokenNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrRefreshTokenNetwork
	}

	return ErrRefreshAccessToken
}

// Retryable reports whether a refresh failure of this kind may succeed on a later attempt.
func (k ErrorKind) Retryable() bool {
	return k == ErrRefreshTokenNetwork
}
