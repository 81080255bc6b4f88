package util

import (
	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. IDs created within the same millisecond
// still sort in creation order.
func New() string {
	return ulid.Make().String()
}

// Valid reports whether id is a well-formed ULID.
func Valid(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}
