package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"haven/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSchema is the Postgres schema created by the bundled migrations.
const DefaultSchema = "haven"

// PostgresStore implements Store over PostgreSQL.
// The pool is owned by the caller; the store never closes it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema holding the users table.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier %q", schema)
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
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
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) users() string {
	return pgx.Identifier{s.schema, "users"}.Sanitize()
}

// CreateUser inserts a user row.
func (s *PostgresStore) CreateUser(ctx context.Context, in NewUser) (User, error) {
	const op = "identity.PostgresStore.CreateUser"

	id, err := ids.NewULID(in.Now)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:           id,
		Name:         NormalizeName(in.Name),
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    in.Now,
		UpdatedAt:    in.Now,
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.users()+` (id, name, email, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		u.ID, u.Name, u.Email, u.PasswordHash, in.Now,
	)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return User{}, ConflictError{Op: op, Field: "name"}
		}
		return User{}, storageErr(op, err)
	}
	return u, nil
}

// GetUserByName loads a user by normalized name.
func (s *PostgresStore) GetUserByName(ctx context.Context, name string) (User, error) {
	return s.getOne(ctx, "identity.PostgresStore.GetUserByName", "name", NormalizeName(name))
}

// GetUserByID loads a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getOne(ctx, "identity.PostgresStore.GetUserByID", "id", id)
}

// getOne selects by a fixed column; column is never caller-controlled.
func (s *PostgresStore) getOne(ctx context.Context, op, column, value string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at, updated_at
		   FROM `+s.users()+`
		  WHERE `+column+` = $1`,
		value,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, notFound(op)
	}
	if err != nil {
		return User{}, storageErr(op, err)
	}
	return u, nil
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}
