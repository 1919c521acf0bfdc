package repository

import "errors"

var (
	// ErrNotFound is wrapped by updates and deletes that address a missing id.
	// Lookups report a missing entity as a nil result instead.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateKey is returned when a save collides with a stored id.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrMissingID is returned when an update or delete gets an entity with a
	// zero id.
	ErrMissingID = errors.New("entity has no id")
)
