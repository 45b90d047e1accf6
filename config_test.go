package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yml")
	err := os.WriteFile(configFile, []byte(`
port: 9000
database_driver: sqlite3
database_url: ./quotation.db
person_delete_policy: cascade
auth_domain: quotation.eu.auth0.com
auth_audience: quotation
jwks_cache_ttl: 10m
allowed_origins:
  - https://quotation.example.com
`), 0644)
	require.NoError(t, err)

	var cfg Config
	err = cfg.Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DatabaseDriver)
	assert.Equal(t, "./quotation.db", cfg.DatabaseURL)
	assert.Equal(t, "cascade", cfg.PersonDeletePolicy)
	assert.Equal(t, "https://quotation.eu.auth0.com/", cfg.AuthIssuer)
	assert.Equal(t, "https://quotation.eu.auth0.com/.well-known/jwks.json", cfg.AuthJWKSURL)
	assert.Equal(t, "RS256", cfg.AuthAlgorithm)
	assert.Equal(t, 10*time.Minute, cfg.JWKSCacheTTL)
	assert.Equal(t, []string{"https://quotation.example.com"}, cfg.AllowedOrigins)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://mohamed@127.0.0.1:5432/quotation?sslmode=disable")
	t.Setenv("AUTH0_DOMAIN", "quotation.eu.auth0.com")
	t.Setenv("API_AUDIENCE", "quotation")

	var cfg Config
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, defaultMaxOpenConns, cfg.DatabaseMaxOpenConns)
	assert.Equal(t, "restrict", cfg.PersonDeletePolicy)
	assert.Equal(t, time.Hour, cfg.JWKSCacheTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "https://quotation.eu.auth0.com/", cfg.AuthIssuer)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		c := Config{
			DatabaseURL:  "./quotation.db",
			AuthDomain:   "quotation.eu.auth0.com",
			AuthAudience: "quotation",
		}
		c.applyDefaults()
		return c
	}

	var tests = []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"no database url", func(c *Config) { c.DatabaseURL = "" }, false},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }, false},
		{"unknown policy", func(c *Config) { c.PersonDeletePolicy = "nullify" }, false},
		{"no audience", func(c *Config) { c.AuthAudience = "" }, false},
		{"no issuer", func(c *Config) { c.AuthIssuer = "" }, false},
		{"explicit issuer and jwks", func(c *Config) {
			c.AuthDomain = ""
			c.AuthIssuer = "https://issuer.example.com/"
			c.AuthJWKSURL = "https://issuer.example.com/keys"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
