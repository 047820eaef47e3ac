// Package ids provides the opaque identifier primitives used by stores.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a new ULID string (26 chars) stamped with now.
// ULIDs sort by creation time, which keeps primary-key indexes append-mostly.
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsULID reports whether s parses as a ULID.
func IsULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
