// Package id defines TypeID-based identities for live observer connections.
//
// Connection IDs are K-sortable (UUIDv7-based), globally unique, and
// URL-safe in the format "conn_suffix". They exist only for the lifetime
// of a process; nothing persists them.
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// PrefixConnection identifies observer connection IDs.
const PrefixConnection = "conn"

// ID is an opaque connection identity.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// NewConnectionID generates a new globally unique connection ID.
func NewConnectionID() ID {
	tid, err := typeid.Generate(PrefixConnection)
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", PrefixConnection, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a connection ID string (e.g. "conn_01h455vb4pex5vsknk084sn02q").
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	if tid.Prefix() != PrefixConnection {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", PrefixConnection, tid.Prefix())
	}
	return ID{inner: tid, valid: true}, nil
}

// String returns the full ID string (prefix_suffix), or "" for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}
