// Package repository defines the generic CRUD contract shared by the
// storage backends, plus the instrumentation every backend is wrapped in.
package repository

import "context"

// Repository is the CRUD capability set over an entity T identified by ID.
// Every operation is fallible.
type Repository[T any, ID comparable] interface {
	// FindAll returns every entity.
	FindAll(ctx context.Context) ([]T, error)

	// FindByID returns the entity with the given id, or nil when absent.
	FindByID(ctx context.Context, id ID) (*T, error)

	// Save inserts a new entity and returns it with its assigned id.
	Save(ctx context.Context, entity T) (T, error)

	// Update replaces an existing entity. ErrNotFound if it does not exist.
	Update(ctx context.Context, entity T) (T, error)

	// Delete removes the given entity.
	Delete(ctx context.Context, entity T) error

	// DeleteByID removes the entity with the given id.
	DeleteByID(ctx context.Context, id ID) error

	// SaveOrUpdate inserts the entity when it has no id and updates it
	// otherwise.
	SaveOrUpdate(ctx context.Context, entity T) (T, error)
}
