// Package handid generates hand identifiers: UUIDv7 values written in
// Crockford base32 so they sort by creation time and fit in a URL.
package handid

import (
	"encoding/base32"
	"fmt"

	"github.com/google/uuid"
)

// Length is the size of every hand ID.
const Length = 26

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// New returns a fresh hand ID. It panics only if the system random source
// fails, like uuid.New.
func New() string {
	return Encode(uuid.Must(uuid.NewV7()))
}

// Encode writes id in the hand ID alphabet.
func Encode(id uuid.UUID) string {
	return encoding.EncodeToString(id[:])
}

// Parse decodes a hand ID back into its UUID.
func Parse(s string) (uuid.UUID, error) {
	if len(s) != Length {
		return uuid.Nil, fmt.Errorf("hand id must be %d characters, got %d", Length, len(s))
	}
	b, err := encoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hand id %q: %w", s, err)
	}
	id, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.Nil, err
	}
	if id.Version() != 7 {
		return uuid.Nil, fmt.Errorf("hand id %q is not time ordered", s)
	}
	return id, nil
}

// Validate reports whether s is a well formed hand ID.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}
