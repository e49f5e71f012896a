package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// tableSpec maps an entity onto one table. columns[0] is the primary key and
// values/dest list the entity fields in column order.
type tableSpec[T any] struct {
	domain  string
	name    string
	columns []string
	// fields maps repository field names to columns; only these may be filtered.
	fields map[string]string
	// uniques maps constraint names to the field reported in a Conflict.
	uniques map[string]string
	values  func(*T) []any
	dest    func(*T) []any
}

func (s *tableSpec[T]) selectSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(s.columns, ", "), s.name)
}

// getSQL selects the first row matching where. With lock the row stays
// locked until the surrounding transaction ends.
func (s *tableSpec[T]) getSQL(where string, lock bool) string {
	query := s.selectSQL() + where + " ORDER BY created_at, id LIMIT 1"
	if lock {
		query += " FOR UPDATE"
	}
	return query
}

func (s *tableSpec[T]) insertSQL() string {
	marks := make([]string, len(s.columns))
	for i := range s.columns {
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.name, strings.Join(s.columns, ", "), strings.Join(marks, ", "))
}

func (s *tableSpec[T]) updateSQL() string {
	sets := make([]string, 0, len(s.columns)-1)
	for i, col := range s.columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+2))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $1", s.name, strings.Join(sets, ", "), s.columns[0])
}

// where renders filter as a WHERE clause with positional arguments.
// Unknown fields are a validation error.
func (s *tableSpec[T]) where(op string, filter shared.Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	var unknown []string
	conds := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter))
	for _, field := range filter.Keys() {
		col, ok := s.fields[field]
		if !ok {
			unknown = append(unknown, field)
			continue
		}
		args = append(args, filter[field])
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if len(unknown) > 0 {
		return "", nil, shared.UnknownFieldError(s.domain, op, unknown...)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// mapError converts driver errors into domain error kinds.
func (s *tableSpec[T]) mapError(op, key string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsNoRows(err):
		return shared.NotFound(s.domain, op, key)
	case IsUniqueViolation(err):
		field := s.uniques[constraintName(err)]
		if field == "" {
			field = s.columns[0]
		}
		e := shared.WrapError(s.domain, op, shared.ErrConflict, "duplicate value", err)
		e.Fields = []string{field}
		return e
	default:
		return shared.StorageFailure(s.domain, op, err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Repository
// ─────────────────────────────────────────────────────────────────────────────

// table implements shared.Repository[T] over a pool or a transaction.
// Inside a transaction Get locks the row it returns.
type table[T any] struct {
	spec *tableSpec[T]
	q    Querier
	lock bool
}

func (t table[T]) scan(row pgx.CollectableRow) (T, error) {
	var v T
	err := row.Scan(t.spec.dest(&v)...)
	return v, err
}

func (t table[T]) Get(ctx context.Context, field, value string) (T, error) {
	var zero T
	where, args, err := t.spec.where("Get", shared.Filter{field: value})
	if err != nil {
		return zero, err
	}

	rows, err := t.q.Query(ctx, t.spec.getSQL(where, t.lock), args...)
	if err != nil {
		return zero, t.spec.mapError("Get", value, err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, t.scan)
	if err != nil {
		return zero, t.spec.mapError("Get", value, err)
	}
	return v, nil
}

func (t table[T]) List(ctx context.Context, filter shared.Filter) ([]T, error) {
	where, args, err := t.spec.where("List", filter)
	if err != nil {
		return nil, err
	}

	rows, err := t.q.Query(ctx, t.spec.selectSQL()+where+" ORDER BY created_at, id", args...)
	if err != nil {
		return nil, t.spec.mapError("List", "", err)
	}
	out, err := pgx.CollectRows(rows, t.scan)
	if err != nil {
		return nil, t.spec.mapError("List", "", err)
	}
	return out, nil
}

func (t table[T]) Create(ctx context.Context, entity T) error {
	values := t.spec.values(&entity)
	_, err := t.q.Exec(ctx, t.spec.insertSQL(), values...)
	return t.spec.mapError("Create", fmt.Sprint(values[0]), err)
}

func (t table[T]) Update(ctx context.Context, entity T) error {
	values := t.spec.values(&entity)
	key := fmt.Sprint(values[0])

	tag, err := t.q.Exec(ctx, t.spec.updateSQL(), values...)
	if err != nil {
		return t.spec.mapError("Update", key, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound(t.spec.domain, "Update", key)
	}
	return nil
}

func (t table[T]) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", t.spec.name, t.spec.columns[0])
	tag, err := t.q.Exec(ctx, query, id)
	if err != nil {
		return t.spec.mapError("Delete", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound(t.spec.domain, "Delete", id)
	}
	return nil
}

func (t table[T]) DeleteWhere(ctx context.Context, filter shared.Filter) (int64, error) {
	where, args, err := t.spec.where("DeleteWhere", filter)
	if err != nil {
		return 0, err
	}

	tag, err := t.q.Exec(ctx, "DELETE FROM "+t.spec.name+where, args...)
	if err != nil {
		return 0, t.spec.mapError("DeleteWhere", "", err)
	}
	return tag.RowsAffected(), nil
}
