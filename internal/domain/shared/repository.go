package shared

import (
	"context"
	"sort"
)

// Filter selects records by exact field equality. An empty filter matches all records.
type Filter map[string]string

// Keys returns the filter fields in a stable order.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Repository is the storage contract consumed by the gradebook core.
// Each store implements it once and instantiates it per entity type.
type Repository[T any] interface {
	// Get returns the single record whose field equals value.
	// Returns ErrNotFound if no record matches.
	Get(ctx context.Context, field, value string) (T, error)

	// List returns all records matching the filter.
	List(ctx context.Context, filter Filter) ([]T, error)

	// Create inserts a new record.
	// Returns ErrConflict if a unique constraint is violated.
	Create(ctx context.Context, entity T) error

	// Update overwrites the stored record with the same identifier.
	// Returns ErrNotFound if the record does not exist.
	Update(ctx context.Context, entity T) error

	// Delete removes the record with the given identifier.
	// Returns ErrNotFound if the record does not exist.
	Delete(ctx context.Context, id string) error

	// DeleteWhere removes all records matching the filter and returns how many were removed.
	DeleteWhere(ctx context.Context, filter Filter) (int64, error)
}

// UnknownFieldError reports a filter or lookup field the entity does not expose.
func UnknownFieldError(domain, op string, fields ...string) error {
	return NewValidationError(domain, op, "unknown field", fields...)
}
