package session

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"haven/cmd/identity"
	"haven/cmd/security/password"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc   *Service
	store *MemoryStore
	users identity.Store
	alice identity.User
	bob   identity.User
	now   time.Time
}

func fastPasswords() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	users := identity.NewMemoryStore()
	acc := identity.NewAccounts(users, fastPasswords())
	alice, err := acc.CreateUser(ctx, identity.CreateUserInput{Name: "alice", Email: "alice@example.org", Password: "correct-horse"})
	require.NoError(t, err)
	bob, err := acc.CreateUser(ctx, identity.CreateUserInput{Name: "bob", Email: "bob@example.org", Password: "battery-staple"})
	require.NoError(t, err)

	codec, err := NewRS256Codec(testRSA(t), DefaultTokenTTL)
	require.NoError(t, err)

	f := &fixture{
		store: NewMemoryStore(),
		users: users,
		alice: alice,
		bob:   bob,
		now:   time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.store, identity.NewVerifier(users, fastPasswords(), "example.org"), codec,
		WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) login(t *testing.T, req LoginRequest) LoginResult {
	t.Helper()
	res, err := f.svc.Login(context.Background(), req)
	require.NoError(t, err)
	return res
}

var deviceIDRe = regexp.MustCompile(`^[A-Z]{10}$`)

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)

	res := f.login(t, LoginRequest{
		Type:       "password",
		Identifier: &UserIdentifier{Type: "m.id.user", User: "alice"},
		Password:   "correct-horse",
	})
	require.Equal(t, LoginOK, res.Status)
	require.Equal(t, f.alice.ID, res.UserID)
	require.Equal(t, "alice", res.Name)
	require.Regexp(t, deviceIDRe, res.DeviceID)
	require.NotEmpty(t, res.AccessToken)
	require.Equal(t, 600*time.Second, res.ExpiresIn)
	require.True(t, res.ExpiresAt.Equal(f.now.Add(600*time.Second)))

	id, err := f.svc.Authenticate(context.Background(), res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, Identity{UserID: f.alice.ID, SessionID: res.SessionID, DeviceID: res.DeviceID}, id)
}

func TestLogin_IdentifierForms(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		req  LoginRequest
	}{
		{name: "user", req: LoginRequest{Type: LoginTypePassword, User: "alice"}},
		{name: "address", req: LoginRequest{Type: LoginTypePassword, Address: "alice"}},
		{name: "qualified", req: LoginRequest{Type: LoginTypePassword, User: "@alice:example.org"}},
		{name: "identifier", req: LoginRequest{Type: LoginTypePassword, Identifier: &UserIdentifier{Type: "m.id.user", User: "ALICE"}}},
		{name: "address wins", req: LoginRequest{Type: LoginTypePassword, Address: "alice", User: "bob"}},
		{name: "user wins over identifier", req: LoginRequest{Type: LoginTypePassword, User: "alice", Identifier: &UserIdentifier{Type: "m.id.user", User: "bob"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.Password = "correct-horse"
			res := f.login(t, tc.req)
			require.Equal(t, LoginOK, res.Status)
			require.Equal(t, f.alice.ID, res.UserID)
		})
	}
}

func TestLogin_Rejections(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		req  LoginRequest
		want LoginStatus
	}{
		{name: "missing type", req: LoginRequest{User: "alice", Password: "correct-horse"}, want: LoginBadRequest},
		{name: "unsupported type", req: LoginRequest{Type: "m.login.token", User: "alice", Password: "correct-horse"}, want: LoginUnsupported},
		{name: "type checked first", req: LoginRequest{Type: "m.login.sso"}, want: LoginUnsupported},
		{name: "no identifier", req: LoginRequest{Type: LoginTypePassword, Password: "correct-horse"}, want: LoginBadRequest},
		{name: "third party identifier", req: LoginRequest{Type: LoginTypePassword, Identifier: &UserIdentifier{Type: "m.id.thirdparty", User: "alice"}, Password: "correct-horse"}, want: LoginBadRequest},
		{name: "empty identifier user", req: LoginRequest{Type: LoginTypePassword, Identifier: &UserIdentifier{Type: "m.id.user"}, Password: "correct-horse"}, want: LoginBadRequest},
		{name: "missing password", req: LoginRequest{Type: LoginTypePassword, User: "alice"}, want: LoginBadRequest},
		{name: "wrong password", req: LoginRequest{Type: LoginTypePassword, User: "alice", Password: "nope-nope-nope"}, want: LoginCredentialsInvalid},
		{name: "unknown user", req: LoginRequest{Type: LoginTypePassword, User: "mallory", Password: "correct-horse"}, want: LoginCredentialsInvalid},
		{name: "foreign server", req: LoginRequest{Type: LoginTypePassword, User: "@alice:evil.org", Password: "correct-horse"}, want: LoginCredentialsInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := f.login(t, tc.req)
			require.Equal(t, tc.want, res.Status, "got %s", res.Status)
			require.Empty(t, res.AccessToken)
		})
	}
	require.Zero(t, f.store.Len(), "rejected logins must not create sessions")
}

func TestLogin_SameDeviceReplacesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.login(t, LoginRequest{Type: LoginTypePassword, User: "alice", Password: "correct-horse", DeviceID: "PHONE"})
	require.Equal(t, "PHONE", first.DeviceID)

	f.now = f.now.Add(time.Second)
	second := f.login(t, LoginRequest{Type: LoginTypePassword, User: "alice", Password: "correct-horse", DeviceID: "PHONE"})
	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.Equal(t, 1, f.store.Len())

	_, err := f.svc.Authenticate(ctx, first.AccessToken)
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.Authenticate(ctx, second.AccessToken)
	require.NoError(t, err)

	// A different device is a separate session.
	third := f.login(t, LoginRequest{Type: LoginTypePassword, User: "alice", Password: "correct-horse", DeviceID: "LAPTOP"})
	require.Equal(t, 2, f.store.Len())
	_, err = f.svc.Authenticate(ctx, third.AccessToken)
	require.NoError(t, err)
}

func TestLogout_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.login(t, LoginRequest{
		Type:       "password",
		Identifier: &UserIdentifier{Type: "m.id.user", User: "alice"},
		Password:   "correct-horse",
	})
	require.Equal(t, LoginOK, res.Status)

	id, err := f.svc.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, id.SessionID))

	_, err = f.svc.Authenticate(ctx, res.AccessToken)
	require.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, f.svc.Logout(ctx, id.SessionID), "logout is idempotent")
}

func TestLogoutAll_OnlyTouchesOneUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a1 := f.login(t, LoginRequest{Type: LoginTypePassword, User: "alice", Password: "correct-horse", DeviceID: "A1"})
	a2 := f.login(t, LoginRequest{Type: LoginTypePassword, User: "alice", Password: "correct-horse", DeviceID: "A2"})
	b1 := f.login(t, LoginRequest{Type: LoginTypePassword, User: "bob", Password: "battery-staple", DeviceID: "A1"})

	n, err := f.svc.LogoutAll(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	for _, tok := range []string{a1.AccessToken, a2.AccessToken} {
		_, err := f.svc.Authenticate(ctx, tok)
		require.ErrorIs(t, err, ErrUnauthenticated)
	}
	id, err := f.svc.Authenticate(ctx, b1.AccessToken)
	require.NoError(t, err)
	require.Equal(t, f.bob.ID, id.UserID)

	n, err = f.svc.LogoutAll(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestAuthenticate_TokenFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.login(t, LoginRequest{Type: LoginTypePassword, User: "alice", Password: "correct-horse"})

	f.now = f.now.Add(DefaultTokenTTL)
	_, err := f.svc.Authenticate(ctx, res.AccessToken)
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.ErrorIs(t, err, ErrTokenExpired)

	f.now = f.now.Add(-DefaultTokenTTL - time.Second)
	_, err = f.svc.Authenticate(ctx, res.AccessToken)
	require.ErrorIs(t, err, ErrTokenNotYetValid)

	_, err = f.svc.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestAuthenticate_RejectsNonUUIDSubject(t *testing.T) {
	f := newFixture(t)

	codec, err := NewRS256Codec(testRSA(t), DefaultTokenTTL)
	require.NoError(t, err)
	tok, _, err := codec.Issue("not-a-uuid", f.now)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), tok)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

type failingStore struct {
	Store
}

var errDiskGone = errors.New("disk gone")

func (*failingStore) ReplaceDeviceSession(context.Context, NewSession) (Session, error) {
	return Session{}, storageErr("test", errDiskGone)
}

func (*failingStore) GetBySubject(context.Context, string) (Session, error) {
	return Session{}, storageErr("test", errDiskGone)
}

func TestService_StorageErrorsAreNotAuthFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.login(t, LoginRequest{Type: LoginTypePassword, User: "alice", Password: "correct-horse"})

	codec, err := NewRS256Codec(testRSA(t), DefaultTokenTTL)
	require.NoError(t, err)
	broken := NewService(&failingStore{Store: NewMemoryStore()}, identity.NewVerifier(f.users, fastPasswords(), "example.org"), codec,
		WithClock(func() time.Time { return f.now }))

	_, err = broken.Login(ctx, LoginRequest{Type: LoginTypePassword, User: "alice", Password: "correct-horse"})
	require.ErrorIs(t, err, ErrStorage)

	_, err = broken.Authenticate(ctx, res.AccessToken)
	require.ErrorIs(t, err, ErrStorage)
	require.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestLogin_DeviceIDGeneratorFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("entropy exhausted")
	f.svc = NewService(f.store, identity.NewVerifier(f.users, fastPasswords(), "example.org"), f.svc.codec,
		WithDeviceIDGenerator(func() (string, error) { return "", boom }))

	_, err := f.svc.Login(context.Background(), LoginRequest{Type: LoginTypePassword, User: "alice", Password: "correct-horse"})
	require.ErrorIs(t, err, boom)
	require.Zero(t, f.store.Len())
}
