// Package mocks provides gomock implementations of the portal's ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	tokens := mocks.NewMockTokenClient(ctrl)
//	tokens.EXPECT().Refresh(gomock.Any(), "rt").Return(grant, nil)
package mocks

// Generate mock for TokenClient interface from internal/ports package.
// This creates MockTokenClient with methods: Refresh, EndSession, EndSessionURL
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_client_mock.go github.com/vss/sso-portal/internal/ports TokenClient

// Generate mock for SessionStore interface from internal/ports package.
// This creates MockSessionStore with methods: Save, Get, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_store_mock.go github.com/vss/sso-portal/internal/ports SessionStore
