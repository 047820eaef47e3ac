package session

import (
	"strings"
	"time"
)

// Login types.
const (
	LoginTypePassword      = "m.login.password"
	loginTypePasswordAlias = "password"

	identifierTypeUser = "m.id.user"
)

// LoginStatus classifies a login attempt. Only LoginOK carries a token.
type LoginStatus int

const (
	LoginOK LoginStatus = iota + 1
	LoginBadRequest
	LoginUnsupported
	LoginCredentialsInvalid
)

func (s LoginStatus) String() string {
	switch s {
	case LoginOK:
		return "ok"
	case LoginBadRequest:
		return "bad_request"
	case LoginUnsupported:
		return "unsupported"
	case LoginCredentialsInvalid:
		return "credentials_invalid"
	default:
		return "unknown"
	}
}

// UserIdentifier is the structured identifier of a login request.
type UserIdentifier struct {
	Type string
	User string
}

// LoginRequest is a decoded password login. The first non-empty of Address,
// User and Identifier names the account.
type LoginRequest struct {
	Type       string
	Address    string
	User       string
	Identifier *UserIdentifier
	Password   string

	// DeviceID is kept when non-empty; otherwise one is generated.
	DeviceID   string
	DeviceName string
}

// LoginResult is the outcome of Service.Login.
type LoginResult struct {
	Status LoginStatus

	UserID      string
	Name        string
	DeviceID    string
	SessionID   string
	AccessToken string
	ExpiresAt   time.Time
	ExpiresIn   time.Duration
}

// checkType maps the login type to a status; 0 means supported.
func checkType(t string) LoginStatus {
	switch strings.TrimSpace(t) {
	case "":
		return LoginBadRequest
	case LoginTypePassword, loginTypePasswordAlias:
		return 0
	default:
		return LoginUnsupported
	}
}

// resolveIdentifier returns the login name, or ok=false for a malformed request.
func (r LoginRequest) resolveIdentifier() (string, bool) {
	if s := strings.TrimSpace(r.Address); s != "" {
		return s, true
	}
	if s := strings.TrimSpace(r.User); s != "" {
		return s, true
	}
	if r.Identifier != nil {
		if r.Identifier.Type != identifierTypeUser {
			return "", false
		}
		if s := strings.TrimSpace(r.Identifier.User); s != "" {
			return s, true
		}
	}
	return "", false
}
