package identity

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"haven/cmd/security/password"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Matrix localpart grammar (historical user IDs excluded).
var nameRe = regexp.MustCompile(`^[a-z0-9._=\-/+]+$`)

// CreateUserInput is an administrative account creation request.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Now      time.Time
}

// Validate checks the input after normalization.
func (in CreateUserInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 255), validation.Match(nameRe)),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required),
	)
}

// Accounts creates users. It is the only writer of password hashes.
type Accounts struct {
	store     Store
	passwords password.Config
}

// NewAccounts builds an Accounts over store using the given hashing config.
func NewAccounts(store Store, passwords password.Config) *Accounts {
	return &Accounts{store: store, passwords: passwords}
}

// CreateUser validates, hashes and inserts a new user.
func (a *Accounts) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	in.Name = NormalizeName(strings.TrimPrefix(strings.TrimSpace(in.Name), "@"))
	in.Email = NormalizeEmail(in.Email)

	if err := in.Validate(); err != nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error(), Err: err}
	}

	hash, err := a.passwords.Hash(in.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) ||
			errors.Is(err, password.ErrPasswordTooLong) ||
			errors.Is(err, password.ErrWeakPassword) {
			return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error(), Err: err}
		}
		return User{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	return a.store.CreateUser(ctx, NewUser{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Now:          now,
	})
}
