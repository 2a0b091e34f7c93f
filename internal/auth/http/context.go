// Package http provides the authentication middleware, per-client and per-IP rate
// limiting, and the token endpoint.
package http

import (
	"context"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
)

type clientKey struct{}

// WithClient stores an authenticated client in the context.
func WithClient(ctx context.Context, client *authDomain.Client) context.Context {
	return context.WithValue(ctx, clientKey{}, client)
}

// GetClient retrieves the authenticated client from the context.
// Returns (nil, false) if no client was set.
func GetClient(ctx context.Context) (*authDomain.Client, bool) {
	client, ok := ctx.Value(clientKey{}).(*authDomain.Client)
	return client, ok
}
