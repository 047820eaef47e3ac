package session

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type rs256Validator struct {
	public *rsa.PublicKey
}

type rs256Codec struct {
	rs256Validator
	private *rsa.PrivateKey
	ttl     time.Duration
}

// NewRS256Codec signs with priv and verifies with its public half.
func NewRS256Codec(priv *rsa.PrivateKey, ttl time.Duration) (Codec, error) {
	if priv == nil {
		return nil, fmt.Errorf("%w: nil RSA private key", ErrConfig)
	}
	if priv.N.BitLen() < 2048 {
		return nil, fmt.Errorf("%w: RSA key must be at least 2048 bits", ErrConfig)
	}
	if ttl < time.Second {
		return nil, fmt.Errorf("%w: token ttl must be at least 1s", ErrConfig)
	}
	return &rs256Codec{
		rs256Validator: rs256Validator{public: &priv.PublicKey},
		private:        priv,
		ttl:            ttl,
	}, nil
}

// NewRS256Validator verifies RS256 tokens with pub only.
func NewRS256Validator(pub *rsa.PublicKey) (Validator, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: nil RSA public key", ErrConfig)
	}
	return rs256Validator{public: pub}, nil
}

func (c *rs256Codec) TTL() time.Duration { return c.ttl }

func (c *rs256Codec) Issue(subject string, issuedAt time.Time) (string, Claims, error) {
	iat := truncateSecond(issuedAt)
	claims := Claims{
		Subject:   subject,
		IssuedAt:  iat,
		NotBefore: iat,
		ExpiresAt: iat.Add(c.ttl),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   claims.Subject,
		IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
		NotBefore: jwt.NewNumericDate(claims.NotBefore),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})
	signed, err := tok.SignedString(c.private)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

func (v rs256Validator) Validate(token string, now time.Time) (Claims, error) {
	var rc jwt.RegisteredClaims

	// jwt/v5 enforces exp as now < exp and nbf as now >= nbf.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(token, &rc, func(*jwt.Token) (any, error) {
		return v.public, nil
	})
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if rc.Subject == "" || rc.IssuedAt == nil || rc.NotBefore == nil {
		return Claims{}, ErrTokenMalformed
	}

	c := Claims{
		Subject:   rc.Subject,
		IssuedAt:  rc.IssuedAt.UTC(),
		NotBefore: rc.NotBefore.UTC(),
		ExpiresAt: rc.ExpiresAt.UTC(),
	}
	if err := checkWindow(c, now); err != nil {
		return Claims{}, err
	}
	return c, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotYetValid
	default:
		return ErrTokenMalformed
	}
}
