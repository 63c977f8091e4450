package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/order-processing/tokens"
)

// Context key type to avoid collisions
type contextKey string

const (
	// IdentityKey is the context key for the authenticated claim set
	IdentityKey contextKey = "identity"
)

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// WithIdentity installs the authenticated claim set on the context
func WithIdentity(ctx context.Context, claims *tokens.ClaimSet) context.Context {
	return context.WithValue(ctx, IdentityKey, claims)
}

// IdentityFromContext returns the claim set installed by the auth middleware,
// or nil for unauthenticated requests
func IdentityFromContext(ctx context.Context) *tokens.ClaimSet {
	if val := ctx.Value(IdentityKey); val != nil {
		if claims, ok := val.(*tokens.ClaimSet); ok {
			return claims
		}
	}
	return nil
}
