package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://quotation.example.com/"
	testAudience = "quotation"
	testKid      = "key-1"
)

func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(permissions ...string) jwt.MapClaims {
	if permissions == nil {
		permissions = []string{}
	}
	return jwt.MapClaims{
		"sub":         "auth0|123",
		"iss":         testIssuer,
		"aud":         testAudience,
		"exp":         time.Now().Add(time.Hour).Unix(),
		"iat":         time.Now().Unix(),
		"permissions": permissions,
	}
}

func TestValidate(t *testing.T) {
	var (
		key   = newTestKey(t)
		other = newTestKey(t)
		v     = NewValidator(ValidatorConfig{
			Issuer:   testIssuer,
			Audience: testAudience,
		}, StaticKeys{testKid: &key.PublicKey})
	)

	expired := validClaims("get:quotes")
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	wrongAud := validClaims("get:quotes")
	wrongAud["aud"] = "someone-else"

	wrongIss := validClaims("get:quotes")
	wrongIss["iss"] = "https://evil.example.com/"

	noExp := validClaims("get:quotes")
	delete(noExp, "exp")

	hs256, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("get:quotes")).SignedString([]byte("secret"))
	require.NoError(t, err)
	hs256WithKid := func() string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("get:quotes"))
		tok.Header["kid"] = testKid
		s, err := tok.SignedString([]byte("secret"))
		require.NoError(t, err)
		return s
	}()

	var tests = []struct {
		name   string
		header string
		kind   Kind
		msg    string
	}{
		{"missing header", "", KindMissingHeader, "Authorization header is expected."},
		{"blank header", "   ", KindMissingHeader, "Authorization header is expected."},
		{"wrong scheme", "Basic abc", KindMalformedHeader, `Authorization header must start with "Bearer".`},
		{"no token", "Bearer", KindMalformedHeader, "Token not found."},
		{"too many parts", "Bearer a b", KindMalformedHeader, "Authorization header must be bearer token."},
		{"not a jwt", "Bearer not.a-jwt", KindMalformedToken, "Authorization malformed."},
		{"two segments", "Bearer abc.def", KindMalformedToken, "Authorization malformed."},
		{"unknown kid", "Bearer " + signToken(t, key, "other", validClaims()), KindKeyNotFound, "Unable to find the appropriate key."},
		{"no kid", "Bearer " + hs256, KindKeyNotFound, "Unable to find the appropriate key."},
		{"wrong algorithm", "Bearer " + hs256WithKid, KindInvalidHeader, "Unable to parse authentication token."},
		{"expired", "Bearer " + signToken(t, key, testKid, expired), KindExpired, "Token expired."},
		{"wrong audience", "Bearer " + signToken(t, key, testKid, wrongAud), KindInvalidClaims, "Incorrect claims. Please, check the audience and issuer."},
		{"wrong issuer", "Bearer " + signToken(t, key, testKid, wrongIss), KindInvalidClaims, "Incorrect claims. Please, check the audience and issuer."},
		{"missing exp", "Bearer " + signToken(t, key, testKid, noExp), KindInvalidClaims, "Incorrect claims. Please, check the audience and issuer."},
		{"bad signature", "Bearer " + signToken(t, other, testKid, validClaims()), KindInvalidSignature, "Token signature is invalid."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.Validate(context.Background(), tt.header)
			assert.Nil(t, claims)

			var authErr *AuthError
			require.True(t, errors.As(err, &authErr), "expected AuthError, got %v", err)
			assert.Equal(t, tt.kind, authErr.Kind)
			assert.Equal(t, tt.msg, authErr.Description())
		})
	}
}

func TestValidateSuccess(t *testing.T) {
	key := newTestKey(t)
	v := NewValidator(ValidatorConfig{
		Issuer:   testIssuer,
		Audience: testAudience,
	}, StaticKeys{testKid: &key.PublicKey})

	t.Run("with permissions", func(t *testing.T) {
		header := "Bearer " + signToken(t, key, testKid, validClaims("get:quotes", "create:quote"))
		claims, err := v.Validate(context.Background(), header)
		require.NoError(t, err)
		assert.Equal(t, "auth0|123", claims.Subject)
		assert.Equal(t, []string{"get:quotes", "create:quote"}, claims.Permissions)
		assert.True(t, claims.HasPermissionsClaim())
	})

	t.Run("lowercase scheme", func(t *testing.T) {
		header := "bearer " + signToken(t, key, testKid, validClaims("get:quotes"))
		_, err := v.Validate(context.Background(), header)
		assert.NoError(t, err)
	})

	t.Run("empty permissions", func(t *testing.T) {
		header := "Bearer " + signToken(t, key, testKid, validClaims())
		claims, err := v.Validate(context.Background(), header)
		require.NoError(t, err)
		assert.True(t, claims.HasPermissionsClaim())
		assert.Empty(t, claims.Permissions)
	})

	t.Run("no permissions claim", func(t *testing.T) {
		c := validClaims()
		delete(c, "permissions")
		claims, err := v.Validate(context.Background(), "Bearer "+signToken(t, key, testKid, c))
		require.NoError(t, err)
		assert.False(t, claims.HasPermissionsClaim())
	})
}

type failingKeys struct{}

func (failingKeys) Key(context.Context, string) (*rsa.PublicKey, error) {
	return nil, ErrKeySetUnavailable
}

func TestValidateKeySetUnavailable(t *testing.T) {
	key := newTestKey(t)
	v := NewValidator(ValidatorConfig{Issuer: testIssuer, Audience: testAudience}, failingKeys{})

	_, err := v.Validate(context.Background(), "Bearer "+signToken(t, key, testKid, validClaims()))
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, KindKeySetUnavailable, authErr.Kind)
}
