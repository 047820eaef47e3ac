package identity

import (
	"errors"
	"fmt"
)

// OpError is a typed operation error with a stable Op + Kind contract.
// Kind is one of the sentinel kinds; Err, when set, is the underlying cause
// (driver error, validation error). Msg must not contain secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e OpError) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Msg == "":
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
	}
}

func (e OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ConflictError reports a uniqueness conflict for a logical field ("name", ...).
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrConflict)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrConflict, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrConflict }

func storageErr(op string, err error) error {
	return OpError{Op: op, Kind: ErrStorage, Err: err}
}

func notFound(op string) error {
	return OpError{Op: op, Kind: ErrNotFound}
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
