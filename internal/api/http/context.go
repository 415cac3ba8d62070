package http

import (
	"context"

	"library-lending/internal/security"
)

type contextKey int

const claimsKey contextKey = iota

func withClaims(ctx context.Context, claims *security.PersonClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the verified bearer claims placed by the auth middleware.
func ClaimsFromContext(ctx context.Context) (*security.PersonClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*security.PersonClaims)
	return claims, ok && claims != nil
}

// callerID returns the acting person id. Routes behind the auth middleware always have one.
func callerID(ctx context.Context) int32 {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.PersonID
	}
	return 0
}

func isLibrarian(ctx context.Context) bool {
	claims, ok := ClaimsFromContext(ctx)
	return ok && claims.HasRole(security.RoleLibrarian)
}
