package identity

import (
	"context"
	"sync"

	"haven/cmd/identity/ids"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]User
	byName map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]User),
		byName: make(map[string]string),
	}
}

var _ Store = (*MemoryStore)(nil)

// CreateUser inserts a user, rejecting a taken name.
func (s *MemoryStore) CreateUser(ctx context.Context, in NewUser) (User, error) {
	const op = "identity.MemoryStore.CreateUser"
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
		CreatedAt:    in.Now,
		UpdatedAt:    in.Now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[u.Name]; taken {
		return User{}, ConflictError{Op: op, Field: "name"}
	}
	s.byID[u.ID] = u
	s.byName[u.Name] = u.ID
	return u, nil
}

// GetUserByName returns the user with the normalized name.
func (s *MemoryStore) GetUserByName(ctx context.Context, name string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[NormalizeName(name)]
	if !ok {
		return User{}, notFound("identity.MemoryStore.GetUserByName")
	}
	return s.byID[id], nil
}

// GetUserByID returns the user with id.
func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, notFound("identity.MemoryStore.GetUserByID")
	}
	return u, nil
}
