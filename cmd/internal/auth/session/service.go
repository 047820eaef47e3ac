package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"haven/cmd/identity"
	"haven/cmd/security/token"

	"github.com/google/uuid"
)

// CredentialVerifier checks a login name and password.
type CredentialVerifier interface {
	Verify(ctx context.Context, identifier, plaintext string) (identity.Verification, error)
}

// Identity is the authenticated principal of a request.
type Identity struct {
	UserID    string
	SessionID string
	DeviceID  string
}

// Service implements login, logout, logout-all and token resolution.
//
// It holds no mutable state of its own; concurrent calls are safe as long
// as the Store is. Nothing here retries.
type Service struct {
	store    Store
	verifier CredentialVerifier
	codec    Codec

	now         func() time.Time
	newDeviceID func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDeviceIDGenerator overrides how device IDs are generated.
func WithDeviceIDGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newDeviceID = gen }
}

// NewService constructs a Service.
func NewService(store Store, verifier CredentialVerifier, codec Codec, opts ...Option) *Service {
	s := &Service{
		store:       store,
		verifier:    verifier,
		codec:       codec,
		now:         time.Now,
		newDeviceID: token.NewDeviceID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// TokenTTL is the lifetime of issued access tokens.
func (s *Service) TokenTTL() time.Duration { return s.codec.TTL() }

// Login authenticates a password login and creates the device session.
//
// Rejections are reported in LoginResult.Status; the error return is
// reserved for storage and signing failures. An unknown user and a wrong
// password both yield LoginCredentialsInvalid.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	if st := checkType(req.Type); st != 0 {
		return LoginResult{Status: st}, nil
	}

	name, ok := req.resolveIdentifier()
	if !ok || req.Password == "" {
		return LoginResult{Status: LoginBadRequest}, nil
	}

	v, err := s.verifier.Verify(ctx, name, req.Password)
	if err != nil {
		return LoginResult{}, err
	}
	if v.Outcome != identity.OutcomeMatched {
		return LoginResult{Status: LoginCredentialsInvalid}, nil
	}

	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		deviceID, err = s.newDeviceID()
		if err != nil {
			return LoginResult{}, err
		}
	}

	var deviceName *string
	if dn := strings.TrimSpace(req.DeviceName); dn != "" {
		deviceName = &dn
	}

	now := s.now().UTC()
	sess, err := s.store.ReplaceDeviceSession(ctx, NewSession{
		UserID:     v.UserID,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Now:        now,
	})
	if err != nil {
		return LoginResult{}, err
	}

	tok, claims, err := s.codec.Issue(sess.Subject, now)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		Status:      LoginOK,
		UserID:      v.UserID,
		Name:        v.Name,
		DeviceID:    deviceID,
		SessionID:   sess.ID,
		AccessToken: tok,
		ExpiresAt:   claims.ExpiresAt,
		ExpiresIn:   s.codec.TTL(),
	}, nil
}

// Logout deletes one session. Deleting an already-deleted session succeeds.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, sessionID)
}

// LogoutAll deletes every session of userID and reports how many existed.
func (s *Service) LogoutAll(ctx context.Context, userID string) (int64, error) {
	return s.store.DeleteAllForUser(ctx, userID)
}

// Authenticate resolves an access token to the Identity of its live session.
//
// Token and session failures wrap ErrUnauthenticated (with the specific
// cause joined for logging); store failures wrap ErrStorage.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (Identity, error) {
	claims, err := s.codec.Validate(rawToken, s.now())
	if err != nil {
		return Identity{}, unauthenticated(err)
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return Identity{}, unauthenticated(ErrTokenMalformed)
	}

	sess, err := s.store.GetBySubject(ctx, claims.Subject)
	if errors.Is(err, ErrSessionNotFound) {
		return Identity{}, unauthenticated(err)
	}
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		DeviceID:  sess.DeviceID,
	}, nil
}
