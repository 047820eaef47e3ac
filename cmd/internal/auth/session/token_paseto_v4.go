package session

import (
	"fmt"
	"strings"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

const pasetoV4PublicHeader = "v4.public."

type pasetoV4Validator struct {
	public paseto.V4AsymmetricPublicKey
}

type pasetoV4Codec struct {
	pasetoV4Validator
	secret paseto.V4AsymmetricSecretKey
	ttl    time.Duration
}

// NewPasetoV4Codec builds a PASETO v4.public codec from a hex Ed25519 secret key.
func NewPasetoV4Codec(secretKeyHex string, ttl time.Duration) (Codec, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(strings.TrimSpace(secretKeyHex))
	if err != nil {
		return nil, fmt.Errorf("%w: paseto secret key: %v", ErrConfig, err)
	}
	if ttl < time.Second {
		return nil, fmt.Errorf("%w: token ttl must be at least 1s", ErrConfig)
	}
	return &pasetoV4Codec{
		pasetoV4Validator: pasetoV4Validator{public: secret.Public()},
		secret:            secret,
		ttl:               ttl,
	}, nil
}

// NewPasetoV4Validator verifies v4.public tokens with a hex Ed25519 public key.
func NewPasetoV4Validator(publicKeyHex string) (Validator, error) {
	pub, err := paseto.NewV4AsymmetricPublicKeyFromHex(strings.TrimSpace(publicKeyHex))
	if err != nil {
		return nil, fmt.Errorf("%w: paseto public key: %v", ErrConfig, err)
	}
	return pasetoV4Validator{public: pub}, nil
}

func (c *pasetoV4Codec) TTL() time.Duration { return c.ttl }

// PublicKeyHex exports the verification key.
func (c *pasetoV4Codec) PublicKeyHex() string {
	return c.public.ExportHex()
}

func (c *pasetoV4Codec) Issue(subject string, issuedAt time.Time) (string, Claims, error) {
	iat := truncateSecond(issuedAt)
	claims := Claims{
		Subject:   subject,
		IssuedAt:  iat,
		NotBefore: iat,
		ExpiresAt: iat.Add(c.ttl),
	}

	tok := paseto.NewToken()
	tok.SetSubject(claims.Subject)
	tok.SetIssuedAt(claims.IssuedAt)
	tok.SetNotBefore(claims.NotBefore)
	tok.SetExpiration(claims.ExpiresAt)

	return tok.V4Sign(c.secret, nil), claims, nil
}

func (v pasetoV4Validator) Validate(token string, now time.Time) (Claims, error) {
	if !strings.HasPrefix(token, pasetoV4PublicHeader) {
		return Claims{}, ErrTokenMalformed
	}

	// The library's ValidAt rule accepts now == exp; time bounds are
	// applied by checkWindow instead.
	p := paseto.NewParserWithoutExpiryCheck()
	parsed, err := p.ParseV4Public(v.public, token, nil)
	if err != nil {
		return Claims{}, ErrTokenSignature
	}

	sub, err := parsed.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, ErrTokenMalformed
	}
	iat, err := parsed.GetIssuedAt()
	if err != nil {
		return Claims{}, ErrTokenMalformed
	}
	nbf, err := parsed.GetNotBefore()
	if err != nil {
		return Claims{}, ErrTokenMalformed
	}
	exp, err := parsed.GetExpiration()
	if err != nil {
		return Claims{}, ErrTokenMalformed
	}

	c := Claims{
		Subject:   sub,
		IssuedAt:  iat.UTC(),
		NotBefore: nbf.UTC(),
		ExpiresAt: exp.UTC(),
	}
	if err := checkWindow(c, now); err != nil {
		return Claims{}, err
	}
	return c, nil
}
