package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/domain/catalog"
	apperrors "github.com/vss/sso-portal/internal/errors"
)

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantKind   string
	}{
		{"missing token", &domainauth.MissingTokenError{Field: "token"}, http.StatusBadRequest, "validation", ""},
		{"no session", domainauth.ErrSessionNotFound, http.StatusUnauthorized, "unauthorized", ""},
		{"invalid session", fmt.Errorf("%w: RefreshTokenInactive", domainauth.ErrSessionInvalid), http.StatusUnauthorized, "unauthorized", ""},
		{"unauthorized with kind", apperrors.Unauthorized("Session invalid or expired", "RefreshTokenExpired"), http.StatusUnauthorized, "unauthorized", "RefreshTokenExpired"},
		{"forbidden app", catalog.ErrAppForbidden, http.StatusForbidden, "forbidden", ""},
		{"unknown app", catalog.ErrAppNotFound, http.StatusNotFound, "not_found", ""},
		{"transport", &domainauth.RefreshTransportError{Err: errors.New("dial")}, http.StatusServiceUnavailable, "unavailable", "RefreshTokenNetworkError"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", ""},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteAppError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body errorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Error)
			assert.Equal(t, tt.wantKind, body.ErrorKind)
		})
	}
}

func TestWriteAppError_HidesInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, errors.New("redis: connection refused at 10.0.0.1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/cookie/set", strings.NewReader(`{"token":"a","extra":1}`))
	rec := httptest.NewRecorder()

	var dst setCookieRequest
	assert.False(t, DecodeJSON(rec, req, &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_json")
}
