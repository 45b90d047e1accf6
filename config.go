package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/stemstr/quotation/internal/quotestore"
)

const (
	defaultPort               = 5000
	defaultDatabaseDriver     = quotestore.DriverPostgres
	defaultMaxOpenConns       = 80
	defaultPersonDeletePolicy = quotestore.DeleteRestrict
	defaultAuthAlgorithm      = "RS256"
	defaultJWKSCacheTTL       = time.Hour
)

type Config struct {
	// API settings
	Port           int      `yaml:"port" envconfig:"PORT"`
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`

	// Database
	DatabaseDriver       string `yaml:"database_driver" envconfig:"DATABASE_DRIVER"`
	DatabaseURL          string `yaml:"database_url" envconfig:"DATABASE_URL"`
	DatabaseMaxOpenConns int    `yaml:"database_max_open_conns" envconfig:"DATABASE_MAX_OPEN_CONNS"`
	PersonDeletePolicy   string `yaml:"person_delete_policy" envconfig:"PERSON_DELETE_POLICY"`

	// Identity provider
	AuthDomain    string        `yaml:"auth_domain" envconfig:"AUTH0_DOMAIN"`
	AuthAudience  string        `yaml:"auth_audience" envconfig:"API_AUDIENCE"`
	AuthIssuer    string        `yaml:"auth_issuer" envconfig:"AUTH_ISSUER"`
	AuthJWKSURL   string        `yaml:"auth_jwks_url" envconfig:"AUTH_JWKS_URL"`
	AuthAlgorithm string        `yaml:"auth_algorithm" envconfig:"AUTH_ALGORITHM"`
	JWKSCacheTTL  time.Duration `yaml:"jwks_cache_ttl" envconfig:"JWKS_CACHE_TTL"`
}

// Load Config from a yaml file at path.
func (c *Config) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return err
	}

	c.applyDefaults()
	return c.Validate()
}

// Load Config from the environment.
func (c *Config) LoadFromEnv() error {
	if err := envconfig.Process("", c); err != nil {
		return err
	}

	c.applyDefaults()
	return c.Validate()
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DatabaseDriver == "" {
		c.DatabaseDriver = defaultDatabaseDriver
	}
	if c.DatabaseMaxOpenConns == 0 {
		// sqlx default is 0 (unlimited), while postgresql by default accepts up to 100 connections
		c.DatabaseMaxOpenConns = defaultMaxOpenConns
	}
	if c.PersonDeletePolicy == "" {
		c.PersonDeletePolicy = string(defaultPersonDeletePolicy)
	}
	if c.AuthAlgorithm == "" {
		c.AuthAlgorithm = defaultAuthAlgorithm
	}
	if c.JWKSCacheTTL == 0 {
		c.JWKSCacheTTL = defaultJWKSCacheTTL
	}

	domain := strings.TrimSuffix(strings.TrimPrefix(c.AuthDomain, "https://"), "/")
	if c.AuthIssuer == "" && domain != "" {
		c.AuthIssuer = "https://" + domain + "/"
	}
	if c.AuthJWKSURL == "" && domain != "" {
		c.AuthJWKSURL = "https://" + domain + "/.well-known/jwks.json"
	}
}

// Validate reports settings the service can't start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("must set database_url")
	}
	switch c.DatabaseDriver {
	case quotestore.DriverPostgres, quotestore.DriverSQLite:
	default:
		return fmt.Errorf("unknown database_driver %q. must be 'postgres' or 'sqlite3'", c.DatabaseDriver)
	}
	if !quotestore.DeletePolicy(c.PersonDeletePolicy).Valid() {
		return fmt.Errorf("unknown person_delete_policy %q. must be 'restrict' or 'cascade'", c.PersonDeletePolicy)
	}
	if c.AuthAudience == "" {
		return fmt.Errorf("must set auth_audience")
	}
	if c.AuthIssuer == "" || c.AuthJWKSURL == "" {
		return fmt.Errorf("must set auth_domain or both auth_issuer and auth_jwks_url")
	}
	return nil
}
