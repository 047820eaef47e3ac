package token

import "errors"

// Public, stable errors for callers.
var (
	ErrHMACKeyTooShort = errors.New("fingerprint HMAC key too short")
	ErrBadLength       = errors.New("invalid random value length")
)
