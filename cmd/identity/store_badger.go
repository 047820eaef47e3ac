package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"haven/cmd/identity/ids"

	"github.com/dgraph-io/badger/v3"
)

// Badger key layout:
//
//	user/<id>         -> JSON userRecord
//	user_name/<name>  -> <id>
const (
	badgerUserPrefix     = "user/"
	badgerUserNamePrefix = "user_name/"
)

type userRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// BadgerStore implements Store over an embedded Badger database.
// The *badger.DB is owned by the caller.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

var _ Store = (*BadgerStore)(nil)

// CreateUser inserts the user and its name index in one transaction.
func (s *BadgerStore) CreateUser(ctx context.Context, in NewUser) (User, error) {
	const op = "identity.BadgerStore.CreateUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	id, err := ids.NewULID(in.Now)
	if err != nil {
		return User{}, err
	}
	u := User{
		ID:           id,
		Name:         NormalizeName(in.Name),
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    in.Now.UTC(),
		UpdatedAt:    in.Now.UTC(),
	}
	val, err := json.Marshal(toUserRecord(u))
	if err != nil {
		return User{}, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		nameKey := []byte(badgerUserNamePrefix + u.Name)
		if _, err := txn.Get(nameKey); err == nil {
			return ConflictError{Op: op, Field: "name"}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(nameKey, []byte(u.ID)); err != nil {
			return err
		}
		return txn.Set([]byte(badgerUserPrefix+u.ID), val)
	})
	switch {
	case err == nil:
		return u, nil
	case IsConflict(err):
		return User{}, err
	case errors.Is(err, badger.ErrConflict):
		// A concurrent transaction touched the same name key.
		return User{}, ConflictError{Op: op, Field: "name"}
	default:
		return User{}, storageErr(op, err)
	}
}

// GetUserByName resolves the name index, then loads the record.
func (s *BadgerStore) GetUserByName(ctx context.Context, name string) (User, error) {
	const op = "identity.BadgerStore.GetUserByName"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	var u User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerUserNamePrefix + NormalizeName(name)))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		u, err = loadUser(txn, string(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return User{}, notFound(op)
	}
	if err != nil {
		return User{}, storageErr(op, err)
	}
	return u, nil
}

// GetUserByID loads a record by ID.
func (s *BadgerStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.BadgerStore.GetUserByID"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	var u User
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		u, err = loadUser(txn, id)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return User{}, notFound(op)
	}
	if err != nil {
		return User{}, storageErr(op, err)
	}
	return u, nil
}

func loadUser(txn *badger.Txn, id string) (User, error) {
	item, err := txn.Get([]byte(badgerUserPrefix + id))
	if err != nil {
		return User{}, err
	}
	var rec userRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return User{}, err
	}
	return rec.toUser(), nil
}

func toUserRecord(u User) userRecord {
	return userRecord{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UnixNano(),
		UpdatedAt:    u.UpdatedAt.UnixNano(),
	}
}

func (r userRecord) toUser() User {
	return User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    unixNanoUTC(r.CreatedAt),
		UpdatedAt:    unixNanoUTC(r.UpdatedAt),
	}
}

func unixNanoUTC(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
