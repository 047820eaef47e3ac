package identity

import (
	"context"

	"haven/cmd/security/password"
)

// Outcome is the result of a credential check.
type Outcome int

const (
	OutcomeNotFound Outcome = iota + 1
	OutcomeMismatch
	OutcomeMatched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotFound:
		return "not_found"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeMatched:
		return "matched"
	default:
		return "unknown"
	}
}

// Verification carries the matched user on OutcomeMatched.
type Verification struct {
	Outcome Outcome
	UserID  string
	Name    string
}

// Verifier checks a plaintext password against a user's stored hash.
// It has no side effects and never sees the plaintext outside Verify.
type Verifier struct {
	users      Store
	passwords  password.Config
	serverName string
}

// NewVerifier builds a Verifier. serverName lets callers pass fully-qualified
// user IDs for this server as login identifiers.
func NewVerifier(users Store, passwords password.Config, serverName string) *Verifier {
	return &Verifier{users: users, passwords: passwords, serverName: serverName}
}

// Verify looks up identifier and compares password against the stored hash.
//
// An unknown user yields OutcomeNotFound without any hash computation.
// The returned error is reserved for storage failures and for stored
// hashes that cannot be decoded; both are server faults, never a match.
func (v *Verifier) Verify(ctx context.Context, identifier, plaintext string) (Verification, error) {
	const op = "identity.Verify"

	name := Localpart(identifier, v.serverName)
	if name == "" {
		return Verification{Outcome: OutcomeNotFound}, nil
	}

	u, err := v.users.GetUserByName(ctx, name)
	if IsNotFound(err) {
		return Verification{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return Verification{}, err
	}

	ok, err := v.passwords.Verify(u.PasswordHash, plaintext)
	if err != nil {
		return Verification{}, OpError{Op: op, Kind: ErrStorage, Msg: "unreadable password hash", Err: err}
	}
	if !ok {
		return Verification{Outcome: OutcomeMismatch}, nil
	}
	return Verification{Outcome: OutcomeMatched, UserID: u.ID, Name: u.Name}, nil
}
