package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/domain/catalog"
)

func codeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func fieldOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

func TestMapAuthError_Nil(t *testing.T) {
	if err := MapAuthError(nil); err != nil {
		t.Errorf("MapAuthError(nil) = %v, want nil", err)
	}
}

func TestMapAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{"deadline", fmt.Errorf("refresh: %w", context.DeadlineExceeded), ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeCanceled},
		{"session not found", fmt.Errorf("get: %w", domainauth.ErrSessionNotFound), ErrCodeUnauthorized},
		{"session invalid", fmt.Errorf("%w: RefreshTokenInactive", domainauth.ErrSessionInvalid), ErrCodeUnauthorized},
		{"missing token", &domainauth.MissingTokenError{Field: "token"}, ErrCodeValidation},
		{"malformed token", &domainauth.MalformedTokenError{Reason: "not a JWT"}, ErrCodeUnauthorized},
		{"app not found", fmt.Errorf("%w: x", catalog.ErrAppNotFound), ErrCodeNotFound},
		{"app forbidden", fmt.Errorf("%w: x", catalog.ErrAppForbidden), ErrCodeForbidden},
		{"transport", &domainauth.RefreshTransportError{Err: errors.New("refused")}, ErrCodeUnavailable},
		{"other", errors.New("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapAuthError(tt.err)
			if code := codeOf(got); code != tt.code {
				t.Errorf("MapAuthError() code = %v, want %v", code, tt.code)
			}
			if !errors.Is(got, tt.err) {
				t.Error("MapAuthError() should preserve the cause")
			}
		})
	}
}

func TestMapAuthError_MissingTokenField(t *testing.T) {
	got := MapAuthError(&domainauth.MissingTokenError{Field: "token"})
	if field := fieldOf(got); field != "token" {
		t.Errorf("Field = %q, want token", field)
	}
}

func TestMapAuthError_PassesAppErrorThrough(t *testing.T) {
	in := &AppError{Code: ErrCodeForbidden, Message: "nope"}
	if got := MapAuthError(fmt.Errorf("wrap: %w", in)); got != in {
		t.Errorf("MapAuthError() = %v, want original AppError", got)
	}
}
