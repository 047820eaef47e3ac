package session

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Claims is the full claim set of an access token. It names a session
// subject only; user identity is resolved from the store on every request.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
}

// Validator verifies access tokens. It holds no signing key.
type Validator interface {
	// Validate checks signature and time bounds: valid iff nbf <= now < exp.
	// Failures are exactly one of ErrTokenMalformed, ErrTokenSignature,
	// ErrTokenExpired or ErrTokenNotYetValid.
	Validate(token string, now time.Time) (Claims, error)
}

// Codec issues and validates access tokens.
type Codec interface {
	Validator

	// Issue signs a token for subject. issuedAt is truncated to the second;
	// nbf equals iat and exp is iat plus TTL.
	Issue(subject string, issuedAt time.Time) (string, Claims, error)

	// TTL is the lifetime of issued tokens.
	TTL() time.Duration
}

// NewCodec builds the codec selected by cfg, loading key material.
func NewCodec(cfg Config) (Codec, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Algorithm)) {
	case AlgorithmPasetoV4:
		return NewPasetoV4Codec(cfg.PasetoSecretKeyHex, cfg.TTL)
	default:
		privPEM, err := os.ReadFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: read token.signing_key_file: %v", ErrConfig, err)
		}
		priv, err := ParseRSAPrivateKeyPEM(privPEM)
		if err != nil {
			return nil, err
		}

		if cfg.VerifyKeyFile != "" {
			pubPEM, err := os.ReadFile(cfg.VerifyKeyFile)
			if err != nil {
				return nil, fmt.Errorf("%w: read token.verify_key_file: %v", ErrConfig, err)
			}
			pub, err := ParseRSAPublicKeyPEM(pubPEM)
			if err != nil {
				return nil, err
			}
			if !priv.PublicKey.Equal(pub) {
				return nil, fmt.Errorf("%w: token.verify_key_file does not match the signing key", ErrConfig)
			}
		}

		return NewRS256Codec(priv, cfg.TTL)
	}
}

func truncateSecond(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// checkWindow applies the shared nbf/exp rule.
func checkWindow(c Claims, now time.Time) error {
	if now.Before(c.NotBefore) {
		return ErrTokenNotYetValid
	}
	if !now.Before(c.ExpiresAt) {
		return ErrTokenExpired
	}
	return nil
}
