package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	authapi "haven/cmd/internal/auth/api"
	"haven/cmd/internal/auth/session"
	"haven/cmd/security/password"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrConfig marks configuration errors detected at startup.
var ErrConfig = errors.New("app: invalid configuration")

// EnvPrefix prefixes every environment override. A double underscore
// separates nesting levels: HAVEN_DATABASE__URL sets database.url.
const EnvPrefix = "HAVEN_"

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
	BackendMemory   = "memory"
)

// Config is the full runtime configuration.
type Config struct {
	Server         ServerConfig    `koanf:"server"`
	Log            LogConfig       `koanf:"log"`
	Storage        StorageConfig   `koanf:"storage"`
	Database       DatabaseConfig  `koanf:"database"`
	Token          session.Config  `koanf:"token"`
	Password       password.Config `koanf:"password"`
	LoginRateLimit RateLimitConfig `koanf:"login_rate_limit"`
	Metrics        MetricsConfig   `koanf:"metrics"`
	Readiness      ReadinessConfig `koanf:"readiness"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`

	// Name is the Matrix server name ("@alice:<name>").
	Name           string `koanf:"name"`
	BaseURL        string `koanf:"base_url"`
	IdentityServer string `koanf:"identity_server"`

	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	MaxHeaderBytes    int           `koanf:"max_header_bytes"`
	MaxBodyBytes      int64         `koanf:"max_body_bytes"`

	TrustProxy bool `koanf:"trust_proxy"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json | pretty | text

	// FingerprintKey keys the HMAC used to hash login identifiers in
	// audit lines. Empty falls back to plain SHA-256.
	FingerprintKey        string `koanf:"fingerprint_key"`
	RequireFingerprintKey bool   `koanf:"require_fingerprint_key"`
}

type StorageConfig struct {
	Backend string       `koanf:"backend"`
	Badger  BadgerConfig `koanf:"badger"`
}

type BadgerConfig struct {
	Dir      string `koanf:"dir"`
	InMemory bool   `koanf:"in_memory"`
}

type DatabaseConfig struct {
	URL      string `koanf:"url"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`

	// Migrate applies embedded migrations before serving.
	Migrate bool `koanf:"migrate"`
}

type RateLimitConfig struct {
	Enabled   bool    `koanf:"enabled"`
	PerSecond float64 `koanf:"per_second"`
	Burst     int     `koanf:"burst"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

type ReadinessConfig struct {
	// RequireDB makes /readyz fail unless the backend is postgres.
	RequireDB bool `koanf:"require_db"`
}

// DefaultConfig returns a config that serves from memory on :8008 once a
// server name and token key are supplied.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:              "0.0.0.0:8008",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxHeaderBytes:    1 << 20,
			MaxBodyBytes:      authapi.DefaultMaxBodyBytes,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Badger:  BadgerConfig{Dir: "./data/badger"},
		},
		Database: DatabaseConfig{
			MaxConns: 10,
			Migrate:  true,
		},
		Token:    session.DefaultConfig(),
		Password: password.DefaultConfig(),
		LoginRateLimit: RateLimitConfig{
			Enabled:   true,
			PerSecond: 0.5,
			Burst:     5,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load layers defaults, the YAML file at path and HAVEN_* environment
// variables, in that order. A missing file is an error only when required.
func Load(path string, required bool) (Config, error) {
	k := koanf.New(".")

	if path = strings.TrimSpace(path); path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("%w: load %s: %w", ErrConfig, path, err)
			}
		case errors.Is(statErr, os.ErrNotExist) && !required:
		default:
			return Config{}, fmt.Errorf("%w: %w", ErrConfig, statErr)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("%w: load env: %w", ErrConfig, err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return cfg, nil
}

// envKey maps HAVEN_TOKEN__SIGNING_KEY_FILE to token.signing_key_file.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate reports the first invalid setting, wrapped in ErrConfig.
func (c Config) Validate() error {
	if err := c.API().Check(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("%w: server.addr is required", ErrConfig)
	}

	switch c.Log.Format {
	case "json", "pretty", "text":
	default:
		return fmt.Errorf("%w: log.format must be json, pretty or text", ErrConfig)
	}

	switch c.Storage.Backend {
	case BackendPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return fmt.Errorf("%w: database.url is required for the postgres backend", ErrConfig)
		}
		if c.Database.MinConns < 0 || (c.Database.MaxConns > 0 && c.Database.MinConns > c.Database.MaxConns) {
			return fmt.Errorf("%w: database.min_conns must be in [0..max_conns]", ErrConfig)
		}
	case BackendBadger:
		if !c.Storage.Badger.InMemory && strings.TrimSpace(c.Storage.Badger.Dir) == "" {
			return fmt.Errorf("%w: storage.badger.dir is required unless in_memory", ErrConfig)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: storage.backend must be postgres, badger or memory", ErrConfig)
	}

	if c.Readiness.RequireDB && c.Storage.Backend != BackendPostgres {
		return fmt.Errorf("%w: readiness.require_db needs the postgres backend", ErrConfig)
	}

	if err := c.Token.Check(); err != nil {
		return err
	}
	if err := c.Password.Check(); err != nil {
		return fmt.Errorf("%w: password.%w", ErrConfig, err)
	}
	return ValidateSecurityConfig(c)
}

// API projects the HTTP-facing settings onto the client API config.
func (c Config) API() authapi.Config {
	return authapi.Config{
		ServerName:     strings.TrimSpace(c.Server.Name),
		BaseURL:        c.Server.BaseURL,
		IdentityServer: c.Server.IdentityServer,
		MaxBodyBytes:   c.Server.MaxBodyBytes,
		TrustProxy:     c.Server.TrustProxy,
		LoginRateLimit: authapi.RateLimitConfig{
			Enabled:   c.LoginRateLimit.Enabled,
			PerSecond: c.LoginRateLimit.PerSecond,
			Burst:     c.LoginRateLimit.Burst,
		},
	}
}
