package auth

import (
	"errors"
	"fmt"
)

var (
	ErrKeyNotFound        = errors.New("signing key not found")
	ErrKeySetUnavailable  = errors.New("signing key set unavailable")
	ErrUnsupportedKeyType = errors.New("unsupported key type")
)

// Kind classifies why a request failed authentication or authorization.
type Kind int

const (
	KindMissingHeader Kind = iota
	KindMalformedHeader
	KindMalformedToken
	KindKeySetUnavailable
	KindKeyNotFound
	KindExpired
	KindInvalidClaims
	KindInvalidSignature
	KindInvalidHeader
	KindMissingPermissionsClaim
	KindForbidden
)

var kindInfo = map[Kind]struct {
	code string
	desc string
}{
	KindMissingHeader:           {"authorization_header_missing", "Authorization header is expected."},
	KindMalformedHeader:         {"invalid_header", "Authorization header must be bearer token."},
	KindMalformedToken:          {"invalid_header", "Authorization malformed."},
	KindKeySetUnavailable:       {"key_set_unavailable", "Unable to fetch the signing key set."},
	KindKeyNotFound:             {"invalid_header", "Unable to find the appropriate key."},
	KindExpired:                 {"token_expired", "Token expired."},
	KindInvalidClaims:           {"invalid_claims", "Incorrect claims. Please, check the audience and issuer."},
	KindInvalidSignature:        {"invalid_signature", "Token signature is invalid."},
	KindInvalidHeader:           {"invalid_header", "Unable to parse authentication token."},
	KindMissingPermissionsClaim: {"invalid_claims", "Permissions not included in JWT."},
	KindForbidden:               {"unauthorized", "Permission not found."},
}

// Code is the machine readable name of the kind.
func (k Kind) Code() string {
	if info, ok := kindInfo[k]; ok {
		return info.code
	}
	return "unknown"
}

// Description is the message reported to clients.
func (k Kind) Description() string {
	if info, ok := kindInfo[k]; ok {
		return info.desc
	}
	return "Unauthorized."
}

func (k Kind) String() string {
	return k.Code()
}

// AuthError is returned for every authentication or authorization failure.
// Message overrides the kind's description when set.
type AuthError struct {
	Kind    Kind
	Message string
	Err     error
}

func newAuthError(kind Kind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Description(), e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Description())
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Description returns the client facing message.
func (e *AuthError) Description() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Description()
}

// Is reports whether target is an AuthError of the same kind.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
