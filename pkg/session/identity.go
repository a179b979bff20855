package session

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// IDSize is the size of a session identifier in bytes.
const IDSize = 8

// maxIDAttempts bounds the retry loop of GenerateID so a broken random
// source fails instead of spinning.
const maxIDAttempts = 64

// ID is an 8-byte session identifier, compared as a big-endian uint64.
// The all-zero value is the never-assigned sentinel.
type ID [IDSize]byte

// IDFromValue converts a stored value back into an identifier. It does not
// apply the non-repeat check; resumption reuses identifiers on purpose.
func IDFromValue(v uint64) ID {
	var id ID
	binary.BigEndian.PutUint64(id[:], v)
	return id
}

// IDFromBytes converts an 8-byte header field into an identifier.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDSize {
		return id, ErrInvalidSessionID
	}
	copy(id[:], b)
	return id, nil
}

// GenerateID draws random identifiers from r until one is neither zero nor
// equal to previous. A nil r uses crypto/rand.
func GenerateID(r io.Reader, previous ID) (ID, error) {
	if r == nil {
		r = rand.Reader
	}
	var id ID
	for i := 0; i < maxIDAttempts; i++ {
		if _, err := io.ReadFull(r, id[:]); err != nil {
			return ID{}, err
		}
		if !id.IsZero() && id != previous {
			return id, nil
		}
	}
	return ID{}, ErrIDGeneration
}

// Value returns the identifier as an unsigned integer.
func (id ID) Value() uint64 {
	return binary.BigEndian.Uint64(id[:])
}

// IsZero returns true for the never-assigned sentinel.
func (id ID) IsZero() bool {
	return id == ID{}
}

// String returns the identifier in upper-case hex.
func (id ID) String() string {
	return fmt.Sprintf("%X", id[:])
}
