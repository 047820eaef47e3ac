package password

import (
	"fmt"
	"runtime"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32 `koanf:"memory_kib"`
	Iterations  uint32 `koanf:"iterations"`
	Parallelism uint8  `koanf:"parallelism"`
	SaltLength  uint32 `koanf:"salt_length"`
	KeyLength   uint32 `koanf:"key_length"`
}

// Policy controls password validation for newly hashed passwords.
// It is never applied when verifying an existing hash.
type Policy struct {
	MinLength      int  `koanf:"min_length"`
	MaxLength      int  `koanf:"max_length"`
	RejectVeryWeak bool `koanf:"reject_very_weak"`
}

// Config is the single configuration surface for this package.
// It is embedded in the server configuration under the "password" key.
type Config struct {
	Params Argon2idParams `koanf:"argon2"`
	Policy Policy         `koanf:"policy"`
}

// DefaultConfig returns the baseline used when no overrides are configured.
func DefaultConfig() Config {
	// Parallelism follows the CPU count, clamped to [1..4].
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      12,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

// Check reports whether c is usable. Ranges match what Verify accepts
// for stored hashes so that freshly produced hashes always verify.
func (c Config) Check() error {
	p := c.Params
	switch {
	case p.MemoryKiB < 8*1024 || p.MemoryKiB > 1024*1024:
		return fmt.Errorf("argon2.memory_kib: out of range [%d..%d]", 8*1024, 1024*1024)
	case p.Iterations < 1 || p.Iterations > 20:
		return fmt.Errorf("argon2.iterations: out of range [1..20]")
	case p.Parallelism < 1 || p.Parallelism > 64:
		return fmt.Errorf("argon2.parallelism: out of range [1..64]")
	case p.SaltLength < 8 || p.SaltLength > 64:
		return fmt.Errorf("argon2.salt_length: out of range [8..64]")
	case p.KeyLength < 16 || p.KeyLength > 64:
		return fmt.Errorf("argon2.key_length: out of range [16..64]")
	}

	if c.Policy.MinLength < 1 || c.Policy.MinLength > 1024 {
		return fmt.Errorf("policy.min_length: out of range [1..1024]")
	}
	if c.Policy.MaxLength < 1 || c.Policy.MaxLength > 4096 {
		return fmt.Errorf("policy.max_length: out of range [1..4096]")
	}
	if c.Policy.MinLength > c.Policy.MaxLength {
		return fmt.Errorf(
			"password policy invalid: min_length(%d) > max_length(%d)",
			c.Policy.MinLength,
			c.Policy.MaxLength,
		)
	}
	return nil
}
