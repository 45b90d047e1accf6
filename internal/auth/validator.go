package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const defaultAlgorithm = "RS256"

// Claims are the parts of a verified token the service cares about.
type Claims struct {
	Subject string
	// Permissions is nil when the token carries no permissions claim at all,
	// and empty when the claim is present but grants nothing.
	Permissions []string
}

// HasPermissionsClaim reports whether the token carried a permissions claim.
func (c *Claims) HasPermissionsClaim() bool {
	return c != nil && c.Permissions != nil
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Permissions *[]string `json:"permissions"`
}

type ValidatorConfig struct {
	Issuer    string
	Audience  string
	Algorithm string
}

// Validator verifies bearer tokens minted by an external identity provider.
type Validator struct {
	cfg    ValidatorConfig
	keys   KeySet
	parser *jwt.Parser
}

func NewValidator(cfg ValidatorConfig, keys KeySet) *Validator {
	if cfg.Algorithm == "" {
		cfg.Algorithm = defaultAlgorithm
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{cfg.Algorithm}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &Validator{
		cfg:    cfg,
		keys:   keys,
		parser: jwt.NewParser(opts...),
	}
}

// Validate authenticates the raw Authorization header value. Every failure
// is an *AuthError.
func (v *Validator) Validate(ctx context.Context, header string) (*Claims, error) {
	raw, err := bearerToken(header)
	if err != nil {
		return nil, err
	}

	unverified, _, err := v.parser.ParseUnverified(raw, &tokenClaims{})
	if err != nil {
		return nil, newAuthError(KindMalformedToken, err)
	}

	kid, _ := unverified.Header["kid"].(string)
	key, err := v.keys.Key(ctx, kid)
	switch {
	case err == nil:
	case errors.Is(err, ErrKeyNotFound):
		return nil, newAuthError(KindKeyNotFound, err)
	default:
		return nil, newAuthError(KindKeySetUnavailable, err)
	}

	if unverified.Method == nil || unverified.Method.Alg() != v.cfg.Algorithm {
		return nil, newAuthError(KindInvalidHeader, jwt.ErrTokenSignatureInvalid)
	}

	var tc tokenClaims
	_, err = v.parser.ParseWithClaims(raw, &tc, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims := &Claims{Subject: tc.Subject}
	if tc.Permissions != nil {
		claims.Permissions = append([]string{}, (*tc.Permissions)...)
	}

	return claims, nil
}

func classifyParseError(err error) *AuthError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newAuthError(KindMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return newAuthError(KindInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return newAuthError(KindExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return newAuthError(KindInvalidClaims, err)
	default:
		return newAuthError(KindInvalidHeader, err)
	}
}

func bearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) == 0 {
		return "", newAuthError(KindMissingHeader, nil)
	}

	switch {
	case !strings.EqualFold(parts[0], "bearer"):
		return "", &AuthError{Kind: KindMalformedHeader, Message: `Authorization header must start with "Bearer".`}
	case len(parts) == 1:
		return "", &AuthError{Kind: KindMalformedHeader, Message: "Token not found."}
	case len(parts) > 2:
		return "", newAuthError(KindMalformedHeader, nil)
	}

	return parts[1], nil
}
