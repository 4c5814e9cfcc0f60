// Package config loads the login flow configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/oauth2"

	"github.com/go-training/oauth-loopback/pkg/core"
	"github.com/go-training/oauth-loopback/pkg/provider"
)

// DefaultScopes are requested when OAUTH_SCOPES is unset.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/cclog",
	"https://www.googleapis.com/auth/experimentsandconfigs",
}

// Config describes one login flow.
type Config struct {
	Provider     string   `env:"OAUTH_PROVIDER" envDefault:"google"`
	ProviderHost string   `env:"OAUTH_PROVIDER_HOST"`
	ClientID     string   `env:"OAUTH_CLIENT_ID"`
	ClientSecret string   `env:"OAUTH_CLIENT_SECRET"`
	Scopes       []string `env:"OAUTH_SCOPES" envSeparator:","`
	AuthURL      string   `env:"OAUTH_AUTH_URL"`
	TokenURL     string   `env:"OAUTH_TOKEN_URL"`

	// Proxy is the optional outbound proxy for the token request.
	Proxy string `env:"PROXY"`

	ExchangeTimeout time.Duration `env:"OAUTH_EXCHANGE_TIMEOUT" envDefault:"30s"`
	ShutdownDelay   time.Duration `env:"OAUTH_SHUTDOWN_DELAY"   envDefault:"1s"`

	StoreType     string `env:"OAUTH_STORE"    envDefault:"file"`
	AccountsFile  string `env:"ACCOUNTS_FILE"  envDefault:"data/accounts.json"`
	RedisAddr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`
	RedisKey      string `env:"REDIS_KEY"      envDefault:"oauth:accounts"`

	LogLevel string `env:"LOG_LEVEL"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given key/value pairs instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Scopes = trimCSV(cfg.Scopes)
	if len(cfg.Scopes) == 0 && isGoogle(cfg.Provider) {
		cfg.Scopes = append([]string(nil), DefaultScopes...)
	}
	cfg.Proxy = strings.TrimSpace(cfg.Proxy)
	return cfg, nil
}

// Validate reports configuration that makes a flow impossible.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return &core.ConfigError{Message: "OAUTH_CLIENT_ID is required"}
	}
	if c.ExchangeTimeout <= 0 {
		return &core.ConfigError{Message: "OAUTH_EXCHANGE_TIMEOUT must be positive"}
	}
	if c.ShutdownDelay < 0 {
		return &core.ConfigError{Message: "OAUTH_SHUTDOWN_DELAY must not be negative"}
	}
	if _, err := c.Endpoint(); err != nil {
		return err
	}
	return nil
}

// Endpoint returns the endpoints of the selected provider with the
// OAUTH_AUTH_URL and OAUTH_TOKEN_URL overrides applied.
func (c Config) Endpoint() (oauth2.Endpoint, error) {
	name, err := provider.ParseName(c.Provider)
	if err != nil {
		return oauth2.Endpoint{}, &core.ConfigError{Message: "OAUTH_PROVIDER", Err: err}
	}
	ep, err := provider.Endpoints(name, c.ProviderHost)
	if err != nil {
		return oauth2.Endpoint{}, &core.ConfigError{Message: "OAUTH_PROVIDER_HOST", Err: err}
	}
	if c.AuthURL != "" {
		ep.AuthURL = c.AuthURL
	}
	if c.TokenURL != "" {
		ep.TokenURL = c.TokenURL
	}
	return ep, nil
}

// Session creates the AuthSession for one flow.
func (c Config) Session() *core.AuthSession {
	return core.NewAuthSession(c.ClientID, c.ClientSecret, c.Scopes)
}

func isGoogle(name string) bool {
	n, err := provider.ParseName(name)
	return err == nil && n == provider.Google
}

// trimCSV removes empty entries from a string slice.
func trimCSV(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
