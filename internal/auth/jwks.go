package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultJWKSCacheTTL        = time.Hour
	defaultJWKSTimeout         = 10 * time.Second
	defaultJWKSRefreshInterval = 30 * time.Second
)

// JWKSConfig configures a remote key set.
type JWKSConfig struct {
	URL      string
	CacheTTL time.Duration
	// MinRefreshInterval is how long an unknown kid is answered from the
	// cache before another fetch is allowed.
	MinRefreshInterval time.Duration
	HTTPClient         *http.Client
}

// JWKS is a KeySet backed by an issuer's JSON Web Key Set endpoint. Keys are
// cached for CacheTTL. A kid missing from the cache triggers a refresh, at
// most once per MinRefreshInterval, and concurrent refreshes share one
// request. A successful refresh replaces the whole set. When the endpoint
// can't be reached the last fetched set keeps being served.
type JWKS struct {
	cfg JWKSConfig

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	attemptedAt time.Time
	group       singleflight.Group
}

func NewJWKS(cfg JWKSConfig) *JWKS {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultJWKSCacheTTL
	}
	if cfg.MinRefreshInterval == 0 {
		cfg.MinRefreshInterval = defaultJWKSRefreshInterval
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultJWKSTimeout}
	}

	return &JWKS{
		cfg:  cfg,
		keys: map[string]*rsa.PublicKey{},
	}
}

func (j *JWKS) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	j.mu.RLock()
	key, ok := j.keys[kid]
	fresh := time.Since(j.fetchedAt) < j.cfg.CacheTTL
	cooling := time.Since(j.attemptedAt) < j.cfg.MinRefreshInterval
	j.mu.RUnlock()

	switch {
	case ok && fresh:
		return key, nil
	case !ok && fresh && cooling:
		return nil, ErrKeyNotFound
	}

	// Shared by every waiting caller. Bounded by the client timeout.
	fetchCtx := context.WithoutCancel(ctx)
	_, err, _ := j.group.Do("refresh", func() (any, error) {
		return nil, j.refresh(fetchCtx)
	})
	if err != nil {
		log.Printf("err: jwks refresh %v: %v", j.cfg.URL, err)
		if ok {
			// Stale but still the best we have.
			return key, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrKeySetUnavailable, err)
	}

	j.mu.RLock()
	key, ok = j.keys[kid]
	j.mu.RUnlock()
	if !ok {
		return nil, ErrKeyNotFound
	}

	return key, nil
}

func (j *JWKS) refresh(ctx context.Context) error {
	j.mu.Lock()
	j.attemptedAt = time.Now()
	j.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	resp, err := j.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		pub, err := k.rsaPublicKey()
		if err != nil {
			log.Printf("jwks: skipping key %q: %v", k.Kid, err)
			continue
		}
		keys[k.Kid] = pub
	}

	j.mu.Lock()
	j.keys = keys
	j.fetchedAt = time.Now()
	j.mu.Unlock()

	return nil
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, k.Kty)
	}
	if k.N == "" || k.E == "" {
		return nil, fmt.Errorf("missing modulus or exponent")
	}

	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode n: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode e: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}, nil
}

var _ KeySet = (*JWKS)(nil)
