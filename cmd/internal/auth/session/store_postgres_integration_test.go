package session

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"haven/cmd/identity"
	"haven/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// Integration tests are opt-in and require HAVEN_TEST_DATABASE_URL.

func TestPostgresStore_Contract(t *testing.T) {
	pool := mustOpenTestPool(t)
	schema := mustCreateTestSchema(t, pool)

	users, err := identity.NewPostgresStore(pool, identity.WithSchema(schema))
	require.NoError(t, err)
	alice := mustInsertUser(t, users, "alice")
	bob := mustInsertUser(t, users, "bob")
	carol := mustInsertUser(t, users, "carol")

	st, err := NewPostgresStore(pool, WithSchema(schema))
	require.NoError(t, err)

	runStoreContract(t, st, alice.ID, bob.ID)
	runConcurrentReplace(t, st, carol.ID)
}

func TestPostgresStore_UnknownUserIsStorageError(t *testing.T) {
	pool := mustOpenTestPool(t)
	schema := mustCreateTestSchema(t, pool)

	st, err := NewPostgresStore(pool, WithSchema(schema))
	require.NoError(t, err)

	_, err = st.ReplaceDeviceSession(context.Background(), NewSession{
		UserID: "01JA0000000000000000000009", DeviceID: "X", Now: time.Now().UTC(),
	})
	require.ErrorIs(t, err, ErrStorage)
}

func TestPostgresService_LoginLogout(t *testing.T) {
	pool := mustOpenTestPool(t)
	schema := mustCreateTestSchema(t, pool)
	ctx := context.Background()

	users, err := identity.NewPostgresStore(pool, identity.WithSchema(schema))
	require.NoError(t, err)
	_, err = identity.NewAccounts(users, fastPasswords()).CreateUser(ctx, identity.CreateUserInput{
		Name: "alice", Email: "alice@example.org", Password: "correct-horse",
	})
	require.NoError(t, err)

	st, err := NewPostgresStore(pool, WithSchema(schema))
	require.NoError(t, err)
	codec, err := NewRS256Codec(testRSA(t), DefaultTokenTTL)
	require.NoError(t, err)
	svc := NewService(st, identity.NewVerifier(users, fastPasswords(), "example.org"), codec)

	res, err := svc.Login(ctx, LoginRequest{Type: LoginTypePassword, User: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	require.Equal(t, LoginOK, res.Status)

	id, err := svc.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, id.SessionID))

	_, err = svc.Authenticate(ctx, res.AccessToken)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestNewPostgresStore_RejectsBadSchema(t *testing.T) {
	_, err := NewPostgresStore(nil, WithSchema("x; DROP"))
	require.Error(t, err)
	_, err = NewPostgresStore(nil)
	require.Error(t, err)
}

func mustInsertUser(t *testing.T, users identity.Store, name string) identity.User {
	t.Helper()
	u, err := users.CreateUser(context.Background(), identity.NewUser{
		Name: name, Email: name + "@example.org", PasswordHash: "$argon2id$stub", Now: time.Now().UTC(),
	})
	require.NoError(t, err)
	return u
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("HAVEN_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: HAVEN_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, raw)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("integration test skipped: postgres unreachable: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// mustCreateTestSchema applies the users/sessions tables in a throwaway schema.
func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	id, err := ids.NewULID(time.Now())
	require.NoError(t, err)
	schema := "haven_it_" + strings.ToLower(id)
	users := pgx.Identifier{schema, "users"}.Sanitize()
	sessions := pgx.Identifier{schema, "sessions"}.Sanitize()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ddl := fmt.Sprintf(`
CREATE SCHEMA %s;
CREATE TABLE %s (
  id            TEXT PRIMARY KEY,
  name          TEXT NOT NULL UNIQUE,
  email         TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL,
  updated_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE %s (
  id          TEXT PRIMARY KEY,
  subject     UUID NOT NULL UNIQUE,
  user_id     TEXT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
  device_id   TEXT NOT NULL,
  device_name TEXT NULL,
  created_at  TIMESTAMPTZ NOT NULL,
  updated_at  TIMESTAMPTZ NOT NULL,
  UNIQUE (user_id, device_id)
);`, pgx.Identifier{schema}.Sanitize(), users, sessions, users)

	_, err = pool.Exec(ctx, ddl)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})
	return schema
}
