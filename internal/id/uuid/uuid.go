// Package uuid generates request identifiers.
package uuid

import (
	"github.com/google/uuid"
)

// RequestID returns a time-ordered UUIDv7 string, falling back to a random
// v4 id when the v7 source fails.
func RequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Valid reports whether s parses as a UUID of any version.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
