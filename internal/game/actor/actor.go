// Package actor provides network-stable actor identifiers shared by every world copy of
// an actor.
package actor

import "github.com/google/uuid"

// ID identifies one actor across the server and every client.
type ID string

// NoID is the empty identifier.
const NoID ID = ""

// NewID returns a fresh random identifier.
//
// Postcondition: returned ID is non-empty.
func NewID() ID {
	return ID(uuid.New().String())
}

// IsValid reports whether id is non-empty.
func (id ID) IsValid() bool {
	return id != NoID
}

// Short returns the first eight characters of id, for logs and debug output.
func (id ID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}
