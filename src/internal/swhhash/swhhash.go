// Package swhhash is the SHA-1 identifier used for content objects and chunks.
package swhhash

import (
	"crypto/sha1" //nolint:gosec // identifiers, not security
	"database/sql/driver"
	"encoding/hex"
	"hash"

	"github.com/softwareheritage/swh-dedup/src/internal/errors"
)

// Size is the length of an ID in bytes.
const Size = sha1.Size

// ID is the SHA-1 of an object's bytes.
type ID [Size]byte

// New returns a running SHA-1.
func New() hash.Hash {
	return sha1.New() //nolint:gosec
}

// Sum returns the ID of data.
func Sum(data []byte) ID {
	return sha1.Sum(data) //nolint:gosec
}

// Parse decodes a 40 character hex string.
func Parse(s string) (ID, error) {
	var id ID
	if len(s) != 2*Size {
		return id, errors.Errorf("invalid id %q: want %d hex characters, got %d", s, 2*Size, len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, errors.Wrapf(err, "invalid id %q", s)
	}
	return id, nil
}

// FromBytes converts a 20 byte slice.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != Size {
		return id, errors.Errorf("invalid id: want %d bytes, got %d", Size, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// HexString hex encodes the ID.
func (id ID) HexString() string {
	return hex.EncodeToString(id[:])
}

func (id ID) String() string {
	return id.HexString()
}

// Value implements driver.Valuer; IDs are stored as raw bytes.
func (id ID) Value() (driver.Value, error) {
	return id[:], nil
}

// Scan implements sql.Scanner.
func (id *ID) Scan(src any) error {
	switch x := src.(type) {
	case []byte:
		v, err := FromBytes(x)
		if err != nil {
			return err
		}
		*id = v
		return nil
	case string:
		// Some drivers hand back blobs as strings.
		v, err := FromBytes([]byte(x))
		if err != nil {
			return err
		}
		*id = v
		return nil
	default:
		return errors.Errorf("cannot scan %T into an ID", src)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.HexString()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
