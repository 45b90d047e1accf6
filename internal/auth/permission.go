package auth

import "context"

// Authorize checks that claims grant the required permission. Permission
// strings are compared verbatim.
func Authorize(required string, claims *Claims) error {
	if !claims.HasPermissionsClaim() {
		return newAuthError(KindMissingPermissionsClaim, nil)
	}

	for _, p := range claims.Permissions {
		if p == required {
			return nil
		}
	}

	return newAuthError(KindForbidden, nil)
}

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims stored by WithClaims, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}
