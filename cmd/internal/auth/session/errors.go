package session

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when a presented token does not resolve to
	// a live session. Callers must not distinguish its causes on the wire.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrSessionNotFound is returned by stores when no session matches.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStorage marks backend failures (I/O, driver, corrupt records).
	ErrStorage = errors.New("session storage failure")

	// ErrConfig is returned for invalid configuration or key material.
	ErrConfig = errors.New("invalid config")
)

// Token validation failures. Codecs return exactly one of these.
var (
	ErrTokenMalformed   = errors.New("token malformed")
	ErrTokenSignature   = errors.New("token signature invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
)

// StoreError wraps a backend failure with the store operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, ErrStorage)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStorage, e.Err)
}

func (e StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStorage}
	}
	return []error{ErrStorage, e.Err}
}

func storageErr(op string, err error) error {
	return StoreError{Op: op, Err: err}
}

// unauthenticated joins a specific cause with ErrUnauthenticated.
func unauthenticated(cause error) error {
	return fmt.Errorf("%w: %w", ErrUnauthenticated, cause)
}
