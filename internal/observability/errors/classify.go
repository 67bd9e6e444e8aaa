// Package errors turns arbitrary errors into low-cardinality class names for
// metric tags and structured logs.
package errors

import (
	"context"
	goerrors "errors"
	"net"
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	domainauth "github.com/vss/sso-portal/internal/domain/auth"
)

// Classify returns a short class name for err, or "" for nil.
// Well-known failure shapes of the refresh path get stable names; anything
// else falls back to the innermost concrete type in snake case.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var (
		rejected  *domainauth.RefreshRejectedError
		retrieve  *oauth2.RetrieveError
		transport *domainauth.RefreshTransportError
		netErr    net.Error
	)
	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.As(err, &rejected):
		return "rejected_" + strconv.Itoa(rejected.Status)
	case goerrors.As(err, &retrieve):
		if retrieve.Response != nil {
			return "rejected_" + strconv.Itoa(retrieve.Response.StatusCode)
		}
		return "rejected"
	case goerrors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case goerrors.As(err, &transport):
		return "transport"
	}
	return typeName(err)
}

func typeName(err error) string {
	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(t.String())
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
