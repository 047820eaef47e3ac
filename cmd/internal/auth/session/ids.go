package session

import (
	"haven/cmd/identity/ids"

	"github.com/google/uuid"
)

// newSessionRecord allocates a fresh ID and subject for in.
// Neither value is ever reused: both come from crypto/rand.
func newSessionRecord(in NewSession) (Session, error) {
	id, err := ids.NewULID(in.Now)
	if err != nil {
		return Session{}, err
	}
	subject, err := uuid.NewRandom()
	if err != nil {
		return Session{}, err
	}
	return Session{
		ID:         id,
		Subject:    subject.String(),
		UserID:     in.UserID,
		DeviceID:   in.DeviceID,
		DeviceName: in.DeviceName,
		CreatedAt:  in.Now,
		UpdatedAt:  in.Now,
	}, nil
}
