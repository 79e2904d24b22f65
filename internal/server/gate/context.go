package gate

import (
	"context"

	"github.com/dmitrijs2005/cerberus/internal/server/auth"
)

type contextKey struct{}

// WithClaims attaches verified claims to ctx.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// ClaimsFromContext returns the claims attached by the gate, if any.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*auth.Claims)
	return claims, ok && claims != nil
}
