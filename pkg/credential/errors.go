package credential

import "errors"

var (
	// ErrNotFound indicates no persisted record exists in the store.
	ErrNotFound = errors.New("credential: record not found")

	// ErrEmptyRecord indicates an attempt to persist or build a record with no entries.
	ErrEmptyRecord = errors.New("credential: record has no entries")

	// ErrNoEnvCredentials indicates the environment fallback variable is not set.
	ErrNoEnvCredentials = errors.New("credential: no cookie string in environment")

	// ErrCorruptRecord indicates persisted state that cannot be decoded.
	ErrCorruptRecord = errors.New("credential: corrupt persisted record")
)
