package session

import (
	"fmt"
	"strings"
	"time"
)

// Supported token algorithms.
const (
	AlgorithmRS256    = "rs256"
	AlgorithmPasetoV4 = "paseto-v4"
)

// DefaultTokenTTL is the access token lifetime.
const DefaultTokenTTL = 600 * time.Second

// Config selects and keys the token codec.
type Config struct {
	// Algorithm is rs256 (default) or paseto-v4.
	Algorithm string `koanf:"algorithm"`

	// TTL is the access token lifetime. Second precision.
	TTL time.Duration `koanf:"ttl"`

	// SigningKeyFile is a PEM RSA private key (PKCS#1 or PKCS#8). rs256 only.
	SigningKeyFile string `koanf:"signing_key_file"`

	// VerifyKeyFile is an optional PEM public key. When set it must match
	// the signing key. rs256 only.
	VerifyKeyFile string `koanf:"verify_key_file"`

	// PasetoSecretKeyHex is the hex Ed25519 secret key. paseto-v4 only.
	PasetoSecretKeyHex string `koanf:"paseto_secret_key_hex"`
}

// DefaultConfig returns an RS256 config with the default TTL and no keys.
func DefaultConfig() Config {
	return Config{
		Algorithm: AlgorithmRS256,
		TTL:       DefaultTokenTTL,
	}
}

// Check validates cfg without touching the filesystem.
func (c Config) Check() error {
	if c.TTL < time.Second {
		return fmt.Errorf("%w: token.ttl must be at least 1s", ErrConfig)
	}
	if c.TTL%time.Second != 0 {
		return fmt.Errorf("%w: token.ttl must be a whole number of seconds", ErrConfig)
	}

	switch strings.ToLower(strings.TrimSpace(c.Algorithm)) {
	case AlgorithmRS256:
		if strings.TrimSpace(c.SigningKeyFile) == "" {
			return fmt.Errorf("%w: token.signing_key_file is required for rs256", ErrConfig)
		}
	case AlgorithmPasetoV4:
		if strings.TrimSpace(c.PasetoSecretKeyHex) == "" {
			return fmt.Errorf("%w: token.paseto_secret_key_hex is required for paseto-v4", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown token.algorithm %q", ErrConfig, c.Algorithm)
	}
	return nil
}
