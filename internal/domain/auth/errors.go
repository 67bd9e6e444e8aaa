package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrSessionNotFound is returned by session stores when no record exists for an ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionInvalid marks a session that exists but must re-authenticate.
	ErrSessionInvalid = errors.New("session invalid or expired")
)

// MalformedTokenError reports a token that cannot be decoded into claims.
type MalformedTokenError struct {
	Reason string
	Err    error
}

func (e *MalformedTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed token: %s: %v", e.Reason, e.Err)
	}
	return "malformed token: " + e.Reason
}

func (e *MalformedTokenError) Unwrap() error { return e.Err }

// RefreshTransportError reports a refresh call that never produced an HTTP response
// (DNS, connection reset, timeout).
type RefreshTransportError struct {
	Err error
}

func (e *RefreshTransportError) Error() string {
	return fmt.Sprintf("refresh transport: %v", e.Err)
}

func (e *RefreshTransportError) Unwrap() error { return e.Err }

// RefreshRejectedError reports a non-2xx response from the token endpoint.
type RefreshRejectedError struct {
	Status int
	Body   string
	// Code and Description are the OAuth2 error fields parsed from Body, when present.
	Code        string
	Description string
}

// NewRefreshRejectedError builds a RefreshRejectedError, extracting the OAuth2
// "error" and "error_description" fields from a JSON or form-encoded body.
func NewRefreshRejectedError(status int, body []byte) *RefreshRejectedError {
	e := &RefreshRejectedError{Status: status, Body: strings.TrimSpace(string(body))}
	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		e.Code = payload.Error
		e.Description = payload.ErrorDescription
		return e
	}
	if vals, err := url.ParseQuery(e.Body); err == nil {
		e.Code = vals.Get("error")
		e.Description = vals.Get("error_description")
	}
	return e
}

func (e *RefreshRejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("refresh rejected: status %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("refresh rejected: status %d", e.Status)
}

// MissingTokenError is returned when a request that must carry a token does not.
type MissingTokenError struct {
	Field string
}

func (e *MissingTokenError) Error() string {
	if e.Field == "" {
		return "token is required"
	}
	return e.Field + " is required"
}

// IsMissingToken reports whether err is a MissingTokenError.
func IsMissingToken(err error) bool {
	var mt *MissingTokenError
	return errors.As(err, &mt)
}

// IsMalformedToken reports whether err is a MalformedTokenError.
func IsMalformedToken(err error) bool {
	var mt *MalformedTokenError
	return errors.As(err, &mt)
}
