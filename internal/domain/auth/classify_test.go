package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyRefreshError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ErrorNone},
		{"invalid_grant on 400", NewRefreshRejectedError(400, []byte(`{"error":"invalid_grant"}`)), ErrRefreshTokenInactive},
		{"invalid_grant on 401", NewRefreshRejectedError(401, []byte(`{"error":"invalid_grant"}`)), ErrRefreshTokenInactive},
		{"401 without code", NewRefreshRejectedError(401, nil), ErrRefreshTokenExpired},
		{"400 other code", NewRefreshRejectedError(400, []byte(`{"error":"invalid_client"}`)), ErrInvalidRefreshToken},
		{"400 non-json body", NewRefreshRejectedError(400, []byte("bad")), ErrInvalidRefreshToken},
		{"invalid_grant form body", NewRefreshRejectedError(400, []byte("error=invalid_grant&error_description=Token+is+not+active")), ErrRefreshTokenInactive},
		{"invalid_grant plain text", NewRefreshRejectedError(400, []byte("invalid_grant: Token is not active")), ErrRefreshTokenInactive},
		{"503", NewRefreshRejectedError(503, nil), ErrRefreshAccessToken},
		{"wrapped rejection", fmt.Errorf("refresh: %w", NewRefreshRejectedError(401, nil)), ErrRefreshTokenExpired},
		{"transport", &RefreshTransportError{Err: errors.New("dial tcp")}, ErrRefreshTokenNetwork},
		{"deadline", context.DeadlineExceeded, ErrRefreshTokenNetwork},
		{"url timeout", &url.Error{Op: "Post", URL: "http://idp", Err: timeoutErr{}}, ErrRefreshTokenNetwork},
		{"malformed token", &MalformedTokenError{Reason: "segments"}, ErrRefreshAccessToken},
		{"anything else", errors.New("boom"), ErrRefreshAccessToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRefreshError(tt.err))
		})
	}
}

func TestNewRefreshRejectedError_ParsesBody(t *testing.T) {
	e := NewRefreshRejectedError(400, []byte(` {"error":"invalid_grant","error_description":"Session not active"} `))
	assert.Equal(t, "invalid_grant", e.Code)
	assert.Equal(t, "Session not active", e.Description)
	assert.Contains(t, e.Error(), "invalid_grant")
	assert.Contains(t, e.Body, "Session not active")
}

func TestNewRefreshRejectedError_ParsesFormBody(t *testing.T) {
	e := NewRefreshRejectedError(400, []byte("error=invalid_grant&error_description=Token+is+not+active"))
	assert.Equal(t, "invalid_grant", e.Code)
	assert.Equal(t, "Token is not active", e.Description)
}

func TestErrorKind_Retryable(t *testing.T) {
	assert.True(t, ErrRefreshTokenNetwork.Retryable())
	assert.False(t, ErrRefreshTokenInactive.Retryable())
}

func TestMissingTokenError(t *testing.T) {
	err := fmt.Errorf("set cookie: %w", &MissingTokenError{Field: "token"})
	assert.True(t, IsMissingToken(err))
	assert.Equal(t, "set cookie: token is required", err.Error())
	assert.False(t, IsMalformedToken(err))
}
