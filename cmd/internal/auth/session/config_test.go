package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfig_Check(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "rs256 with key", mutate: func(c *Config) { c.SigningKeyFile = "key.pem" }, ok: true},
		{name: "rs256 without key", mutate: func(c *Config) {}, ok: false},
		{name: "paseto with secret", mutate: func(c *Config) { c.Algorithm = "PASETO-V4"; c.PasetoSecretKeyHex = "ab" }, ok: true},
		{name: "paseto without secret", mutate: func(c *Config) { c.Algorithm = AlgorithmPasetoV4 }, ok: false},
		{name: "unknown algorithm", mutate: func(c *Config) { c.Algorithm = "hs256"; c.SigningKeyFile = "k" }, ok: false},
		{name: "zero ttl", mutate: func(c *Config) { c.SigningKeyFile = "k"; c.TTL = 0 }, ok: false},
		{name: "fractional ttl", mutate: func(c *Config) { c.SigningKeyFile = "k"; c.TTL = 1500 * time.Millisecond }, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Check()
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrConfig)
		})
	}
}

func writeTestKeys(t *testing.T) (privPath, pubPath string) {
	t.Helper()
	privPEM, pubPEM, err := GenerateRSAKeyPEM(DefaultRSABits)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath = filepath.Join(dir, "signing.pem")
	pubPath = filepath.Join(dir, "verify.pem")
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o644))
	return privPath, pubPath
}

func TestNewCodec_RS256FromFiles(t *testing.T) {
	privPath, pubPath := writeTestKeys(t)

	cfg := DefaultConfig()
	cfg.SigningKeyFile = privPath
	cfg.VerifyKeyFile = pubPath

	c, err := NewCodec(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultTokenTTL, c.TTL())

	now := time.Now()
	tok, _, err := c.Issue("5c0e2a8e-3c1d-4c4b-9f52-1c0f3b6f1a11", now)
	require.NoError(t, err)

	pubPEM, err := os.ReadFile(pubPath)
	require.NoError(t, err)
	pub, err := ParseRSAPublicKeyPEM(pubPEM)
	require.NoError(t, err)
	v, err := NewRS256Validator(pub)
	require.NoError(t, err)
	_, err = v.Validate(tok, now)
	require.NoError(t, err)
}

func TestNewCodec_RejectsMismatchedVerifyKey(t *testing.T) {
	privPath, _ := writeTestKeys(t)
	_, otherPub := writeTestKeys(t)

	cfg := DefaultConfig()
	cfg.SigningKeyFile = privPath
	cfg.VerifyKeyFile = otherPub

	_, err := NewCodec(cfg)
	require.ErrorIs(t, err, ErrConfig)
}

func TestNewCodec_MissingOrBadKeyFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SigningKeyFile = filepath.Join(t.TempDir(), "missing.pem")
	_, err := NewCodec(cfg)
	require.ErrorIs(t, err, ErrConfig)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not pem"), 0o600))
	cfg.SigningKeyFile = bad
	_, err = NewCodec(cfg)
	require.ErrorIs(t, err, ErrConfig)
}

func TestNewCodec_Paseto(t *testing.T) {
	secretHex, _ := GeneratePasetoV4KeyHex()

	cfg := DefaultConfig()
	cfg.Algorithm = AlgorithmPasetoV4
	cfg.PasetoSecretKeyHex = secretHex
	cfg.TTL = time.Minute

	c, err := NewCodec(cfg)
	require.NoError(t, err)
	require.Equal(t, time.Minute, c.TTL())
}
