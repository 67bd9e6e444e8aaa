package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPortal(t *testing.T, h http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientOptions{BaseURL: srv.URL})
	require.NoError(t, err)
	return srv, c
}

func TestNewClient_RequiresAbsoluteURL(t *testing.T) {
	_, err := NewClient(ClientOptions{})
	require.Error(t, err)

	_, err = NewClient(ClientOptions{BaseURL: "/relative"})
	require.Error(t, err)
}

func TestClient_ValidateSession(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      Status
		wantError bool
	}{
		{"valid", http.StatusOK, `{"success":true,"message":"Session valid"}`, Status{Valid: true}, false},
		{"invalid with kind", http.StatusUnauthorized, `{"success":false,"error":"RefreshTokenInactive"}`, Status{Kind: "RefreshTokenInactive"}, false},
		{"invalid without body", http.StatusUnauthorized, ``, Status{}, false},
		{"server error is not invalid", http.StatusInternalServerError, `{"success":false}`, Status{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/validate-session", r.URL.Path)
				assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := c.ValidateSession(context.Background())
			if tt.wantError {
				var use *UnexpectedStatusError
				require.ErrorAs(t, err, &use)
				assert.Equal(t, tt.status, use.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_SessionCookieRoundTrip(t *testing.T) {
	var seen []string
	_, c := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("portal_session")
		if err != nil {
			seen = append(seen, "")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		seen = append(seen, ck.Value)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.SetSession("abc"))
	st, err := c.ValidateSession(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Valid)

	require.NoError(t, c.SignOut(context.Background()))
	st, err = c.ValidateSession(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Valid)

	assert.Equal(t, []string{"abc", ""}, seen)
}

func TestClient_ClearCookieAndLogout(t *testing.T) {
	var calls []string
	_, c := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/cookie/clear":
			http.SetCookie(w, &http.Cookie{Name: "auth_token", Value: "", Path: "/", MaxAge: -1})
			_, _ = w.Write([]byte(`{"success":true}`))
		case "/logout":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"partial","message":"no id_token","redirectUrl":"http://portal/login"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	require.NoError(t, c.ClearCookie(context.Background()))
	res, err := c.Logout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "partial", res.Status)
	assert.Equal(t, "http://portal/login", res.RedirectURL)
	assert.Equal(t, []string{"POST /cookie/clear", "GET /logout"}, calls)
}

func TestClient_LogoutRejectsBadStatus(t *testing.T) {
	_, c := newPortal(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Logout(context.Background())
	require.Error(t, err)
}
