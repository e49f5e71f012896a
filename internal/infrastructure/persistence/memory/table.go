// Package memory implements the gradebook stores in process memory.
// It backs STORAGE_DRIVER=memory and the application tests.
package memory

import (
	"context"
	"sync"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// Spec describes how a Table reads its entity.
type Spec[T any] struct {
	Domain string
	// Key returns the primary identifier.
	Key func(T) string
	// Fields maps each filterable field to its accessor.
	Fields map[string]func(T) string
	// Unique lists fields whose values may not repeat across rows.
	Unique []string
}

// Table is an insertion-ordered set of rows. It does no locking of its own.
type Table[T any] struct {
	spec  Spec[T]
	rows  map[string]T
	order []string
}

// NewTable creates an empty table.
func NewTable[T any](spec Spec[T]) *Table[T] {
	return &Table[T]{spec: spec, rows: make(map[string]T)}
}

func (t *Table[T]) clone() *Table[T] {
	c := &Table[T]{
		spec:  t.spec,
		rows:  make(map[string]T, len(t.rows)),
		order: append([]string(nil), t.order...),
	}
	for k, v := range t.rows {
		c.rows[k] = v
	}
	return c
}

func (t *Table[T]) restore(from *Table[T]) {
	t.rows = from.rows
	t.order = from.order
}

func (t *Table[T]) checkFields(op string, fields ...string) error {
	var unknown []string
	for _, f := range fields {
		if _, ok := t.spec.Fields[f]; !ok {
			unknown = append(unknown, f)
		}
	}
	if len(unknown) > 0 {
		return shared.UnknownFieldError(t.spec.Domain, op, unknown...)
	}
	return nil
}

func (t *Table[T]) matches(row T, filter shared.Filter) bool {
	for field, want := range filter {
		if t.spec.Fields[field](row) != want {
			return false
		}
	}
	return true
}

func (t *Table[T]) get(field, value string) (T, error) {
	var zero T
	if err := t.checkFields("Get", field); err != nil {
		return zero, err
	}
	for _, k := range t.order {
		row := t.rows[k]
		if t.spec.Fields[field](row) == value {
			return row, nil
		}
	}
	return zero, shared.NotFound(t.spec.Domain, "Get", value)
}

func (t *Table[T]) list(filter shared.Filter) ([]T, error) {
	if err := t.checkFields("List", filter.Keys()...); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(t.order))
	for _, k := range t.order {
		if row := t.rows[k]; t.matches(row, filter) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (t *Table[T]) conflicts(row T, skipKey string) []string {
	var fields []string
	for _, field := range t.spec.Unique {
		value := t.spec.Fields[field](row)
		for k, other := range t.rows {
			if k != skipKey && t.spec.Fields[field](other) == value {
				fields = append(fields, field)
				break
			}
		}
	}
	return fields
}

func (t *Table[T]) create(row T) error {
	key := t.spec.Key(row)
	if _, exists := t.rows[key]; exists {
		return conflict(t.spec.Domain, "Create", "id")
	}
	if fields := t.conflicts(row, ""); len(fields) > 0 {
		return conflict(t.spec.Domain, "Create", fields...)
	}
	t.rows[key] = row
	t.order = append(t.order, key)
	return nil
}

func (t *Table[T]) update(row T) error {
	key := t.spec.Key(row)
	if _, exists := t.rows[key]; !exists {
		return shared.NotFound(t.spec.Domain, "Update", key)
	}
	if fields := t.conflicts(row, key); len(fields) > 0 {
		return conflict(t.spec.Domain, "Update", fields...)
	}
	t.rows[key] = row
	return nil
}

func (t *Table[T]) delete(key string) error {
	if _, exists := t.rows[key]; !exists {
		return shared.NotFound(t.spec.Domain, "Delete", key)
	}
	delete(t.rows, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

func (t *Table[T]) deleteWhere(filter shared.Filter) (int64, error) {
	rows, err := t.list(filter)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		if err := t.delete(t.spec.Key(row)); err != nil {
			return 0, err
		}
	}
	return int64(len(rows)), nil
}

func conflict(domain, op string, fields ...string) error {
	e := shared.NewDomainError(domain, op, shared.ErrConflict, "duplicate value")
	e.Fields = fields
	return e
}

// ─────────────────────────────────────────────────────────────────────────────
// Repository view
// ─────────────────────────────────────────────────────────────────────────────

// repo exposes a Table as a shared.Repository. When mu is nil the caller
// already holds the store lock, as inside WithinTx.
type repo[T any] struct {
	table *Table[T]
	mu    *sync.RWMutex
}

func (r repo[T]) read() func() {
	if r.mu == nil {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

func (r repo[T]) write() func() {
	if r.mu == nil {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r repo[T]) Get(ctx context.Context, field, value string) (T, error) {
	defer r.read()()
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	return r.table.get(field, value)
}

func (r repo[T]) List(ctx context.Context, filter shared.Filter) ([]T, error) {
	defer r.read()()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.table.list(filter)
}

func (r repo[T]) Create(ctx context.Context, entity T) error {
	defer r.write()()
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.table.create(entity)
}

func (r repo[T]) Update(ctx context.Context, entity T) error {
	defer r.write()()
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.table.update(entity)
}

func (r repo[T]) Delete(ctx context.Context, id string) error {
	defer r.write()()
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.table.delete(id)
}

func (r repo[T]) DeleteWhere(ctx context.Context, filter shared.Filter) (int64, error) {
	defer r.write()()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.table.deleteWhere(filter)
}
