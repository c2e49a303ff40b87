package types

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ID is a 128-bit opaque identifier. It persists as raw bytes and is
// exchanged in its canonical hyphenated form.
type ID [16]byte

// NewID returns a random ID.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses the canonical form of an ID: 36 lowercase hex characters
// with hyphens at the usual UUID positions. Other spellings accepted by
// uuid.Parse (braces, urn prefix, upper case, compact hex) are rejected.
func ParseID(s string) (ID, error) {
	if len(s) != 36 {
		return ID{}, fmt.Errorf("%w: %q", ErrBadFormat, s)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrBadFormat, s)
	}
	if u.String() != s {
		return ID{}, fmt.Errorf("%w: %q is not canonical", ErrBadFormat, s)
	}
	return ID(u), nil
}

// ParseCompactID parses the 32-character lowercase hex form of an ID.
func ParseCompactID(s string) (ID, error) {
	var id ID
	if len(s) != 32 {
		return id, fmt.Errorf("%w: %q", ErrBadFormat, s)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrBadFormat, s)
	}
	if hex.EncodeToString(id[:]) != s {
		return ID{}, fmt.Errorf("%w: %q is not canonical", ErrBadFormat, s)
	}
	return id, nil
}

// MustParseID is like ParseID but panics on error. Intended for tests and
// constants.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical hyphenated form.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Compact returns the 32-character hex form.
func (id ID) Compact() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Bytes returns a copy of the raw bytes.
func (id ID) Bytes() []byte {
	b := make([]byte, len(id))
	copy(b, id[:])
	return b
}

// Value implements driver.Valuer; IDs are stored as 16-byte blobs.
func (id ID) Value() (driver.Value, error) {
	return id.Bytes(), nil
}

// Scan implements sql.Scanner.
func (id *ID) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		if len(v) != len(id) {
			return fmt.Errorf("%w: blob of %d bytes", ErrBadFormat, len(v))
		}
		copy(id[:], v)
		return nil
	case nil:
		return fmt.Errorf("%w: NULL", ErrBadFormat)
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrBadFormat, src)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NullID is an ID that may be NULL in the database.
type NullID struct {
	ID    ID
	Valid bool
}

// Scan implements sql.Scanner.
func (n *NullID) Scan(src any) error {
	if src == nil {
		n.ID, n.Valid = ID{}, false
		return nil
	}
	n.Valid = true
	return n.ID.Scan(src)
}

// Value implements driver.Valuer.
func (n NullID) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.ID.Value()
}
