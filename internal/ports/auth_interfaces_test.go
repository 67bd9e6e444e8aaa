package ports_test

import (
	"testing"

	mocks "github.com/vss/sso-portal/internal/mocks/auth"
	"github.com/vss/sso-portal/internal/ports"
)

// This test only verifies that our mocks conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.AuthProvider = (*mocks.MockAuthProvider)(nil)
	var _ ports.TokenClient = (*mocks.MockTokenClient)(nil)
	var _ ports.TokenDecoder = (*mocks.StaticDecoder)(nil)
	var _ ports.SessionStore = (*mocks.MemorySessionStore)(nil)
	var _ ports.AppCatalog = (*mocks.StaticCatalog)(nil)
}
