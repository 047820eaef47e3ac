package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// countingStore records lookups so tests can assert no hashing happens for unknown users.
type countingStore struct {
	Store
	lookups int
	err     error
}

func (s *countingStore) GetUserByName(ctx context.Context, name string) (User, error) {
	s.lookups++
	if s.err != nil {
		return User{}, s.err
	}
	return s.Store.GetUserByName(ctx, name)
}

func seedUser(t *testing.T, st Store, name, pw string) User {
	t.Helper()
	u, err := NewAccounts(st, testPasswords()).CreateUser(context.Background(), CreateUserInput{
		Name: name, Email: name + "@example.org", Password: pw, Now: time.Now().UTC(),
	})
	require.NoError(t, err)
	return u
}

func TestVerifier_Outcomes(t *testing.T) {
	st := NewMemoryStore()
	alice := seedUser(t, st, "alice", "correct-horse")
	v := NewVerifier(st, testPasswords(), "example.org")
	ctx := context.Background()

	cases := []struct {
		name       string
		identifier string
		password   string
		want       Outcome
	}{
		{name: "match", identifier: "alice", password: "correct-horse", want: OutcomeMatched},
		{name: "match case-insensitive", identifier: " Alice ", password: "correct-horse", want: OutcomeMatched},
		{name: "match qualified", identifier: "@alice:example.org", password: "correct-horse", want: OutcomeMatched},
		{name: "wrong password", identifier: "alice", password: "battery-staple", want: OutcomeMismatch},
		{name: "empty password", identifier: "alice", password: "", want: OutcomeMismatch},
		{name: "unknown user", identifier: "mallory", password: "correct-horse", want: OutcomeNotFound},
		{name: "foreign server", identifier: "@alice:elsewhere.org", password: "correct-horse", want: OutcomeNotFound},
		{name: "empty identifier", identifier: "", password: "correct-horse", want: OutcomeNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := v.Verify(ctx, tc.identifier, tc.password)
			require.NoError(t, err)
			require.Equal(t, tc.want, got.Outcome, "outcome %s", got.Outcome)
			if tc.want == OutcomeMatched {
				require.Equal(t, alice.ID, got.UserID)
				require.Equal(t, "alice", got.Name)
			} else {
				require.Empty(t, got.UserID)
			}
		})
	}
}

func TestVerifier_StorageErrorPropagates(t *testing.T) {
	boom := storageErr("test", errors.New("connection reset"))
	st := &countingStore{Store: NewMemoryStore(), err: boom}
	v := NewVerifier(st, testPasswords(), "example.org")

	_, err := v.Verify(context.Background(), "alice", "pw")
	require.ErrorIs(t, err, ErrStorage)
	require.Equal(t, 1, st.lookups)
}

func TestVerifier_CorruptHashIsError(t *testing.T) {
	st := NewMemoryStore()
	_, err := st.CreateUser(context.Background(), NewUser{Name: "bob", Email: "b@example.org", PasswordHash: "plaintext!", Now: time.Now()})
	require.NoError(t, err)

	v := NewVerifier(st, testPasswords(), "example.org")
	got, err := v.Verify(context.Background(), "bob", "plaintext!")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrStorage)
	require.NotEqual(t, OutcomeMatched, got.Outcome)
}

func TestOutcome_String(t *testing.T) {
	require.Equal(t, "matched", OutcomeMatched.String())
	require.Equal(t, "mismatch", OutcomeMismatch.String())
	require.Equal(t, "not_found", OutcomeNotFound.String())
	require.Equal(t, "unknown", Outcome(0).String())
}
