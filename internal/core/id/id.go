// Package id provides UUIDv7 generation for all ledger entities.
// UUIDv7 is time-ordered, so ids of layers, entries and journals sort by creation.
package id

import (
	"github.com/google/uuid"
)

// ID is a type alias for UUID, used across all entities.
type ID = uuid.UUID

// New generates a new UUIDv7 (time-ordered UUID).
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts string to ID, panics on error.
// Callers pass constants or request fields already validated as uuid.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// MustParseOptional is MustParse for optional filters: "" yields nil.
func MustParseOptional(s string) *ID {
	if s == "" {
		return nil
	}
	v := uuid.MustParse(s)
	return &v
}

// Nil returns zero-value UUID.
func Nil() ID {
	return uuid.Nil
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

// Ptr returns a pointer to v, or nil when v is the zero value.
func Ptr(v ID) *ID {
	if IsNil(v) {
		return nil
	}
	return &v
}
