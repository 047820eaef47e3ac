package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for development and tests.
// A single mutex makes ReplaceDeviceSession atomic.
type MemoryStore struct {
	mu        sync.Mutex
	byID      map[string]Session
	bySubject map[string]string
	byDevice  map[deviceKey]string
}

type deviceKey struct {
	userID   string
	deviceID string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[string]Session),
		bySubject: make(map[string]string),
		byDevice:  make(map[deviceKey]string),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) ReplaceDeviceSession(ctx context.Context, in NewSession) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	sess, err := newSessionRecord(in)
	if err != nil {
		return Session{}, storageErr("session.MemoryStore.ReplaceDeviceSession", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := deviceKey{userID: in.UserID, deviceID: in.DeviceID}
	if oldID, ok := s.byDevice[key]; ok {
		s.deleteLocked(oldID)
	}
	s.byID[sess.ID] = sess
	s.bySubject[sess.Subject] = sess.ID
	s.byDevice[key] = sess.ID
	return sess, nil
}

func (s *MemoryStore) GetBySubject(ctx context.Context, subject string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.bySubject[subject]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(sessionID)
	return nil
}

func (s *MemoryStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.byID {
		if sess.UserID == userID {
			s.deleteLocked(id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *MemoryStore) deleteLocked(id string) {
	sess, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	delete(s.bySubject, sess.Subject)
	key := deviceKey{userID: sess.UserID, deviceID: sess.DeviceID}
	if s.byDevice[key] == id {
		delete(s.byDevice, key)
	}
}
