package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Version = argon2.Version // 0x13 (19)

var b64 = base64.RawStdEncoding

// phc is a decoded $argon2id$ string.
type phc struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

// Hash validates password against the policy and returns an encoded Argon2id hash:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		c.Params.Iterations,
		c.Params.MemoryKiB,
		c.Params.Parallelism,
		c.Params.KeyLength,
	)

	return encode(phc{params: c.Params, salt: salt, key: key}), nil
}

// Verify checks whether password matches encodedHash.
// Returns (true, nil) for a match, (false, nil) for a mismatch,
// and (false, ErrInvalidHash) for malformed or unsupported hashes.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	h, err := decode(encodedHash)
	if err != nil {
		return false, err
	}

	if !withinReasonableBounds(h.params, c.Params) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey(
		[]byte(password),
		h.salt,
		h.params.Iterations,
		h.params.MemoryKiB,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return subtle.ConstantTimeCompare(key, h.key) == 1, nil
}

// NeedsRehash reports whether encodedHash was produced with parameters
// weaker than c. Malformed hashes always need a rehash.
func (c Config) NeedsRehash(encodedHash string) bool {
	h, err := decode(encodedHash)
	if err != nil {
		return true
	}
	p := h.params
	return p.MemoryKiB < c.Params.MemoryKiB ||
		p.Iterations < c.Params.Iterations ||
		p.KeyLength < c.Params.KeyLength ||
		p.SaltLength < c.Params.SaltLength
}

// withinReasonableBounds accepts hashes made with older, smaller settings
// and rejects anything wildly above the configured cost.
func withinReasonableBounds(got Argon2idParams, limits Argon2idParams) bool {
	if got.MemoryKiB > limits.MemoryKiB*2 {
		return false
	}
	if got.Iterations > limits.Iterations*2 {
		return false
	}
	if uint32(got.Parallelism) > uint32(limits.Parallelism)*2 {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < 16 || got.KeyLength > 128 {
		return false
	}
	return true
}

func encode(h phc) string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		b64.EncodeToString(h.salt),
		b64.EncodeToString(h.key),
	)
}

func decode(encoded string) (phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return phc{}, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2Version) {
		return phc{}, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return phc{}, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return phc{}, ErrInvalidHash
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return phc{}, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return phc{}, ErrInvalidHash
	}

	return phc{
		params: Argon2idParams{
			MemoryKiB:   mem,
			Iterations:  it,
			Parallelism: uint8(par),        // #nosec G115 -- bounded above.
			SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by withinReasonableBounds.
			KeyLength:   uint32(len(key)),  // #nosec G115 -- bounded by withinReasonableBounds.
		},
		salt: salt,
		key:  key,
	}, nil
}
