package session

import (
	"context"
	"time"
)

// Session is one logged-in device of one user.
//
// ID is the storage key and never leaves the server. Subject is the random
// value carried in the access token's sub claim.
type Session struct {
	ID         string
	Subject    string
	UserID     string
	DeviceID   string
	DeviceName *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewSession is the insert payload for ReplaceDeviceSession.
type NewSession struct {
	UserID     string
	DeviceID   string
	DeviceName *string
	Now        time.Time
}

// Store abstracts session persistence.
//
// Implementations generate ID (ULID) and Subject (UUIDv4), return
// ErrSessionNotFound for missing rows and wrap backend failures in StoreError.
type Store interface {
	// ReplaceDeviceSession deletes any session for (UserID, DeviceID) and
	// inserts a fresh one, atomically.
	ReplaceDeviceSession(ctx context.Context, in NewSession) (Session, error)

	// GetBySubject loads the session whose token subject is subject.
	GetBySubject(ctx context.Context, subject string) (Session, error)

	// Delete removes one session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// DeleteAllForUser removes every session of userID and reports how many.
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}
