package errors

import (
	"context"
	"errors"

	domainauth "github.com/vss/sso-portal/internal/domain/auth"
	"github.com/vss/sso-portal/internal/domain/catalog"
)

// MapAuthError maps session, token and catalog errors to AppError instances.
// It handles:
// - missing session → Unauthorized
// - invalid session → Unauthorized (with the session's error kind when known)
// - missing token → Validation
// - malformed token → Unauthorized
// - unknown app → NotFound, role mismatch → Forbidden
// - refresh transport failures → Unavailable
// - context timeouts/cancellations → Timeout/Canceled
//
// Anything else becomes Internal. An existing AppError is returned unchanged.
func MapAuthError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrCodeTimeout, "Request timed out. Please try again.")
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(err, ErrCodeCanceled, "Request was canceled.")
	}

	var missing *domainauth.MissingTokenError
	if errors.As(err, &missing) {
		appErr = Wrap(err, ErrCodeValidation, missing.Error())
		appErr.Field = missing.Field
		return appErr
	}

	switch {
	case errors.Is(err, domainauth.ErrSessionNotFound), errors.Is(err, domainauth.ErrSessionInvalid):
		return Wrap(err, ErrCodeUnauthorized, "Session invalid or expired")
	case domainauth.IsMalformedToken(err):
		return Wrap(err, ErrCodeUnauthorized, "Invalid token")
	case errors.Is(err, catalog.ErrAppNotFound):
		return Wrap(err, ErrCodeNotFound, "Application not found")
	case errors.Is(err, catalog.ErrAppForbidden):
		return Wrap(err, ErrCodeForbidden, "You do not have access to this application")
	}

	var transport *domainauth.RefreshTransportError
	if errors.As(err, &transport) {
		appErr = Wrap(err, ErrCodeUnavailable, "Identity provider is unreachable. Please try again.")
		appErr.Kind = string(domainauth.ErrRefreshTokenNetwork)
		return appErr
	}

	return Wrap(err, ErrCodeInternal, "Internal server error")
}
