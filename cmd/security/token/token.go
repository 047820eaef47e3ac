package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// DeviceIDLength is the length of generated device identifiers.
	DeviceIDLength = 10

	deviceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// MinHMACKeyBytes is the smallest accepted fingerprint key.
	MinHMACKeyBytes = 32
)

// NewDeviceID returns a random device identifier of DeviceIDLength
// upper-case ASCII letters.
func NewDeviceID() (string, error) {
	return randomString(DeviceIDLength, deviceAlphabet)
}

// randomString draws n characters uniformly from alphabet using crypto/rand.
// Bytes that would bias the distribution are rejected.
func randomString(n int, alphabet string) (string, error) {
	if n <= 0 || len(alphabet) == 0 || len(alphabet) > 256 {
		return "", ErrBadLength
	}

	limit := 256 - (256 % len(alphabet))
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Fingerprinter produces short, stable digests of identifiers for logs.
// With a key it is HMAC-SHA256; without one it falls back to SHA-256.
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter builds a Fingerprinter. An empty key selects plain
// SHA-256; a non-empty key shorter than MinHMACKeyBytes is rejected.
func NewFingerprinter(key string) (Fingerprinter, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Fingerprinter{}, nil
	}
	if len(key) < MinHMACKeyBytes {
		return Fingerprinter{}, ErrHMACKeyTooShort
	}
	return Fingerprinter{key: []byte(key)}, nil
}

// Keyed reports whether f uses HMAC.
func (f Fingerprinter) Keyed() bool { return len(f.key) > 0 }

// Fingerprint returns the first 16 hex characters of the digest of s.
func (f Fingerprinter) Fingerprint(s string) string {
	var sum string
	if f.Keyed() {
		sum = HashHMACSHA256Hex(s, f.key)
	} else {
		sum = HashSHA256Hex(s)
	}
	return sum[:16]
}
