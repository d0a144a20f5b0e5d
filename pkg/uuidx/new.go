package uuidx

import "github.com/google/uuid"

// New returns a time ordered (version 7) UUID. It panics when the random
// source fails, which only happens when the system entropy pool is broken.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString is New rendered in its canonical string form.
func NewString() string {
	return New().String()
}
