package authapi

import (
	"errors"
	"strings"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 64 << 10

// Config controls the client API surface.
type Config struct {
	// ServerName is the Matrix server name used in "@name:server" user IDs.
	ServerName string

	// BaseURL and IdentityServer are advertised in /.well-known/matrix/client.
	BaseURL        string
	IdentityServer string

	MaxBodyBytes int64

	// TrustProxy makes client IPs come from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	LoginRateLimit RateLimitConfig
}

// RateLimitConfig is a per-client-IP token bucket for POST /login.
type RateLimitConfig struct {
	Enabled   bool
	PerSecond float64
	Burst     int
}

// DefaultConfig returns conservative defaults. ServerName must still be set.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes: DefaultMaxBodyBytes,
		LoginRateLimit: RateLimitConfig{
			Enabled:   true,
			PerSecond: 0.5,
			Burst:     5,
		},
	}
}

// Check reports the first invalid field.
func (c Config) Check() error {
	if strings.TrimSpace(c.ServerName) == "" {
		return errors.New("server.name is required")
	}
	if strings.ContainsAny(c.ServerName, "@/ ") {
		return errors.New("server.name must be a host name")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("server.max_body_bytes must be positive")
	}
	if c.LoginRateLimit.Enabled && (c.LoginRateLimit.PerSecond <= 0 || c.LoginRateLimit.Burst <= 0) {
		return errors.New("login_rate_limit.per_second and burst must be positive when enabled")
	}
	return nil
}
