package store

import "errors"

// Sentinel errors shared by all store implementations.
var (
	// ErrNotFound means the keyed row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrRatingConflict means the user already has a rating for this
	// fingerprint inside the cooldown window (or one still unprocessed).
	ErrRatingConflict = errors.New("store: rating conflict")
)
