package auth

import (
	"context"
	"crypto/rsa"
)

// KeySet resolves the public key an issuer signed a token with.
type KeySet interface {
	// Key returns the key for kid. ErrKeyNotFound is returned when the set
	// has no such key and ErrKeySetUnavailable when the set can't be loaded.
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// StaticKeys is a fixed KeySet keyed by kid.
type StaticKeys map[string]*rsa.PublicKey

func (s StaticKeys) Key(_ context.Context, kid string) (*rsa.PublicKey, error) {
	key, ok := s[kid]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

var _ KeySet = StaticKeys(nil)
