package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
)

// Badger key layout:
//
//	session/<id>                    -> JSON sessionRecord
//	session_subject/<subject>       -> <id>
//	session_device/<user>/<device>  -> <id>
//	session_user/<user>/<id>        -> (empty)
const (
	badgerSessionPrefix = "session/"
	badgerSubjectPrefix = "session_subject/"
	badgerDevicePrefix  = "session_device/"
	badgerUserPrefix    = "session_user/"
)

type sessionRecord struct {
	ID         string  `json:"id"`
	Subject    string  `json:"subject"`
	UserID     string  `json:"user_id"`
	DeviceID   string  `json:"device_id"`
	DeviceName *string `json:"device_name,omitempty"`
	CreatedAt  int64   `json:"created_at"`
	UpdatedAt  int64   `json:"updated_at"`
}

// BadgerStore implements Store over an embedded Badger database.
//
// Writers are serialized so that concurrent logins on one device never
// surface badger.ErrConflict; reads run lock-free in their own snapshot.
type BadgerStore struct {
	db *badger.DB
	mu sync.Mutex
}

// NewBadgerStore wraps db. The *badger.DB is owned by the caller.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

var _ Store = (*BadgerStore)(nil)

func (s *BadgerStore) ReplaceDeviceSession(ctx context.Context, in NewSession) (Session, error) {
	const op = "session.BadgerStore.ReplaceDeviceSession"
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	sess, err := newSessionRecord(in)
	if err != nil {
		return Session{}, storageErr(op, err)
	}
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.UpdatedAt = sess.UpdatedAt.UTC()

	val, err := json.Marshal(toSessionRecord(sess))
	if err != nil {
		return Session{}, storageErr(op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(txn *badger.Txn) error {
		devKey := []byte(badgerDevicePrefix + in.UserID + "/" + in.DeviceID)

		item, err := txn.Get(devKey)
		switch {
		case err == nil:
			oldID, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := deleteSessionTxn(txn, string(oldID)); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := txn.Set([]byte(badgerSessionPrefix+sess.ID), val); err != nil {
			return err
		}
		if err := txn.Set([]byte(badgerSubjectPrefix+sess.Subject), []byte(sess.ID)); err != nil {
			return err
		}
		if err := txn.Set(devKey, []byte(sess.ID)); err != nil {
			return err
		}
		return txn.Set([]byte(badgerUserPrefix+sess.UserID+"/"+sess.ID), nil)
	})
	if err != nil {
		return Session{}, storageErr(op, err)
	}
	return sess, nil
}

func (s *BadgerStore) GetBySubject(ctx context.Context, subject string) (Session, error) {
	const op = "session.BadgerStore.GetBySubject"
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	var sess Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerSubjectPrefix + subject))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		sess, err = loadSession(txn, string(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, storageErr(op, err)
	}
	return sess, nil
}

func (s *BadgerStore) Delete(ctx context.Context, sessionID string) error {
	const op = "session.BadgerStore.Delete"
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Update(func(txn *badger.Txn) error {
		return deleteSessionTxn(txn, sessionID)
	}); err != nil {
		return storageErr(op, err)
	}
	return nil
}

func (s *BadgerStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	const op = "session.BadgerStore.DeleteAllForUser"
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	err := s.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(badgerUserPrefix + userID + "/")

		var sessionIDs []string
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			sessionIDs = append(sessionIDs, string(key[len(prefix):]))
		}
		it.Close()

		for _, id := range sessionIDs {
			if err := deleteSessionTxn(txn, id); err != nil {
				return err
			}
		}
		n = int64(len(sessionIDs))
		return nil
	})
	if err != nil {
		return 0, storageErr(op, err)
	}
	return n, nil
}

// deleteSessionTxn removes a session and all its index keys. Missing is a no-op.
func deleteSessionTxn(txn *badger.Txn, id string) error {
	sess, err := loadSession(txn, id)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	keys := []string{
		badgerSessionPrefix + sess.ID,
		badgerSubjectPrefix + sess.Subject,
		badgerUserPrefix + sess.UserID + "/" + sess.ID,
	}

	devKey := []byte(badgerDevicePrefix + sess.UserID + "/" + sess.DeviceID)
	item, err := txn.Get(devKey)
	switch {
	case err == nil:
		cur, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(cur) == sess.ID {
			keys = append(keys, string(devKey))
		}
	case !errors.Is(err, badger.ErrKeyNotFound):
		return err
	}

	for _, k := range keys {
		if err := txn.Delete([]byte(k)); err != nil {
			return err
		}
	}
	return nil
}

func loadSession(txn *badger.Txn, id string) (Session, error) {
	item, err := txn.Get([]byte(badgerSessionPrefix + id))
	if err != nil {
		return Session{}, err
	}
	var rec sessionRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return Session{}, err
	}
	return rec.toSession(), nil
}

func toSessionRecord(s Session) sessionRecord {
	return sessionRecord{
		ID:         s.ID,
		Subject:    s.Subject,
		UserID:     s.UserID,
		DeviceID:   s.DeviceID,
		DeviceName: s.DeviceName,
		CreatedAt:  s.CreatedAt.UnixNano(),
		UpdatedAt:  s.UpdatedAt.UnixNano(),
	}
}

func (r sessionRecord) toSession() Session {
	return Session{
		ID:         r.ID,
		Subject:    r.Subject,
		UserID:     r.UserID,
		DeviceID:   r.DeviceID,
		DeviceName: r.DeviceName,
		CreatedAt:  time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt:  time.Unix(0, r.UpdatedAt).UTC(),
	}
}
