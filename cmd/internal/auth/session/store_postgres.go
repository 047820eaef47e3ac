package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSchema is the Postgres schema created by the bundled migrations.
const DefaultSchema = "haven"

// PostgresStore implements Store using PostgreSQL (<schema>.sessions).
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema holding the sessions table.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("session: invalid schema identifier %q", schema)
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	return st, nil
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) sessions() string {
	return pgx.Identifier{s.schema, "sessions"}.Sanitize()
}

// ReplaceDeviceSession upserts on the unique (user_id, device_id) index.
// Every column is overwritten, so the previous session's ID and subject
// stop resolving in the same statement that creates the new ones.
func (s *PostgresStore) ReplaceDeviceSession(ctx context.Context, in NewSession) (Session, error) {
	const op = "session.PostgresStore.ReplaceDeviceSession"

	sess, err := newSessionRecord(in)
	if err != nil {
		return Session{}, storageErr(op, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+s.sessions()+` (
			id, subject, user_id, device_id, device_name, created_at, updated_at
		) VALUES (
			$1, $2::uuid, $3, $4, $5, $6, $6
		)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			id = EXCLUDED.id,
			subject = EXCLUDED.subject,
			device_name = EXCLUDED.device_name,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`, sess.ID, sess.Subject, sess.UserID, sess.DeviceID, sess.DeviceName, in.Now)
	if err != nil {
		return Session{}, storageErr(op, err)
	}
	return sess, nil
}

// GetBySubject expects a canonical UUID; Service.Authenticate checks the shape first.
func (s *PostgresStore) GetBySubject(ctx context.Context, subject string) (Session, error) {
	const op = "session.PostgresStore.GetBySubject"

	var sess Session
	err := s.pool.QueryRow(ctx, `
		SELECT id, subject::text, user_id, device_id, device_name, created_at, updated_at
		FROM `+s.sessions()+`
		WHERE subject = $1::uuid
	`, subject).Scan(
		&sess.ID,
		&sess.Subject,
		&sess.UserID,
		&sess.DeviceID,
		&sess.DeviceName,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, storageErr(op, err)
	}
	return sess, nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.sessions()+` WHERE id = $1`, sessionID)
	if err != nil {
		return storageErr("session.PostgresStore.Delete", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.sessions()+` WHERE user_id = $1`, userID)
	if err != nil {
		return 0, storageErr("session.PostgresStore.DeleteAllForUser", err)
	}
	return tag.RowsAffected(), nil
}
