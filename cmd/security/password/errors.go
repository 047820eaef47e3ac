package password

import "errors"

// Policy errors are returned by Validate and Hash; ErrInvalidHash by Verify
// for stored hashes that cannot be decoded or exceed the configured cost.
var (
	ErrPasswordTooShort = errors.New("password: too short")
	ErrPasswordTooLong  = errors.New("password: too long")
	ErrWeakPassword     = errors.New("password: too weak")
	ErrInvalidHash      = errors.New("password: invalid stored hash")
)
