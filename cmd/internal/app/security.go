package app

import (
	"errors"
	"fmt"

	"haven/cmd/security/token"
)

// ValidateSecurityConfig enforces startup security policy. It fails fast
// instead of silently falling back to unkeyed fingerprints.
func ValidateSecurityConfig(cfg Config) error {
	fp, err := token.NewFingerprinter(cfg.Log.FingerprintKey)
	switch {
	case errors.Is(err, token.ErrHMACKeyTooShort):
		return fmt.Errorf("%w: log.fingerprint_key is too short (min %d bytes)", ErrConfig, token.MinHMACKeyBytes)
	case err != nil:
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if cfg.Log.RequireFingerprintKey && !fp.Keyed() {
		return fmt.Errorf("%w: log.require_fingerprint_key is set but log.fingerprint_key is missing", ErrConfig)
	}
	return nil
}

func newFingerprinter(cfg LogConfig) (token.Fingerprinter, error) {
	fp, err := token.NewFingerprinter(cfg.FingerprintKey)
	if err != nil {
		return token.Fingerprinter{}, fmt.Errorf("%w: log.fingerprint_key: %w", ErrConfig, err)
	}
	return fp, nil
}
