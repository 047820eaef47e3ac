package identity

import (
	"context"
	"time"
)

// User is a local account. Name is the normalized Matrix localpart.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser is the store-level insert payload. PasswordHash is already encoded.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Now          time.Time
}

// Store is the user persistence boundary.
//
// Implementations normalize names on both insert and lookup, return
// ErrNotFound (via OpError) for missing rows, ConflictError for a taken
// name, and wrap every backend failure with ErrStorage.
type Store interface {
	CreateUser(ctx context.Context, in NewUser) (User, error)
	GetUserByName(ctx context.Context, name string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
}
