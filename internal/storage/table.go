package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownField reports a value or filter referencing a field that was
// never declared. This is a programmer error: callers should treat it as
// fatal rather than retry.
var ErrUnknownField = errors.New("storage: unknown field")

// DBTX is the subset of database/sql that Table executes against.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Order is one (field, direction) pair of an order-by list.
type Order struct {
	Field string
	Desc  bool
}

// Table maps an ordered list of typed field declarations to one relational
// table. All SQL is generated here; callers never construct query text.
type Table struct {
	db     DBTX
	name   string
	fields []Field
	byName map[string]Field
}

// NewTable declares a table schema. Field order fixes column order.
func NewTable(db DBTX, name string, fields []Field) (*Table, error) {
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		if _, dup := byName[f.Name]; dup {
			return nil, fmt.Errorf("storage: duplicate field %q in table %s", f.Name, name)
		}
		byName[f.Name] = f
	}
	return &Table{
		db:     db,
		name:   name,
		fields: fields,
		byName: byName,
	}, nil
}

// WithTx returns a Table bound to the given transaction. The schema is
// shared; only the execution target changes.
func (t *Table) WithTx(tx *sql.Tx) *Table {
	return &Table{
		db:     tx,
		name:   t.name,
		fields: t.fields,
		byName: t.byName,
	}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns the declared field names in column order.
func (t *Table) Columns() []string {
	cols := make([]string, len(t.fields))
	for i, f := range t.fields {
		cols[i] = f.Name
	}
	return cols
}

// Create creates the backing table if it does not already exist.
// Schema changes are out of scope; an existing table is left untouched.
func (t *Table) Create(ctx context.Context) error {
	defs := make([]string, len(t.fields))
	for i, f := range t.fields {
		defs[i] = f.columnDef()
	}
	query := fmt.Sprintf("create table if not exists %s (%s)", t.name, strings.Join(defs, ", "))
	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating table %s: %w", t.name, err)
	}
	return nil
}

// Insert encodes each value through its field's encoder and appends a row.
func (t *Table) Insert(ctx context.Context, values map[string]any) error {
	names := sortedKeys(values)
	encoded, err := t.encodeValues(names, values)
	if err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	query := fmt.Sprintf("insert into %s (%s) values (%s)",
		t.name, strings.Join(names, ", "), placeholders)

	if _, err := t.db.ExecContext(ctx, query, encoded...); err != nil {
		return fmt.Errorf("inserting into %s: %w", t.name, err)
	}
	return nil
}

// Update encodes values and the equality-conjunction filter and updates
// matching rows. An empty where updates every row; callers must pass the
// filter they mean.
func (t *Table) Update(ctx context.Context, values, where map[string]any) error {
	names := sortedKeys(values)
	encoded, err := t.encodeValues(names, values)
	if err != nil {
		return err
	}

	sets := make([]string, len(names))
	for i, n := range names {
		sets[i] = n + " = ?"
	}
	query := fmt.Sprintf("update %s set %s", t.name, strings.Join(sets, ", "))

	clause, args, err := t.whereClause(where)
	if err != nil {
		return err
	}
	query += clause

	if _, err := t.db.ExecContext(ctx, query, append(encoded, args...)...); err != nil {
		return fmt.Errorf("updating %s: %w", t.name, err)
	}
	return nil
}

// Select returns rows matching the equality-conjunction filter.
// With cols == nil every declared column is fetched and each value is run
// through its field's decoder (full-record mode). With explicit cols the raw
// storage values are returned undecoded.
func (t *Table) Select(ctx context.Context, cols []string, where map[string]any, orderBy []Order) ([][]any, error) {
	full := cols == nil
	if full {
		cols = t.Columns()
	} else {
		for _, c := range cols {
			if _, ok := t.byName[c]; !ok {
				return nil, fmt.Errorf("%w: %q in table %s", ErrUnknownField, c, t.name)
			}
		}
	}

	query := fmt.Sprintf("select %s from %s", strings.Join(cols, ", "), t.name)

	clause, args, err := t.whereClause(where)
	if err != nil {
		return nil, err
	}
	query += clause

	if len(orderBy) > 0 {
		terms := make([]string, len(orderBy))
		for i, o := range orderBy {
			if _, ok := t.byName[o.Field]; !ok {
				return nil, fmt.Errorf("%w: %q in order by", ErrUnknownField, o.Field)
			}
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			terms[i] = o.Field + " " + dir
		}
		query += " order by " + strings.Join(terms, ", ")
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", t.name, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row from %s: %w", t.name, err)
		}
		if full {
			for i, c := range cols {
				decoded, err := t.byName[c].Type.Decode(vals[i])
				if err != nil {
					return nil, fmt.Errorf("decoding %s.%s: %w", t.name, c, err)
				}
				vals[i] = decoded
			}
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows from %s: %w", t.name, err)
	}
	return out, nil
}

// Count returns the number of matching rows without materializing them.
func (t *Table) Count(ctx context.Context, where map[string]any) (int64, error) {
	query := fmt.Sprintf("select count(*) from %s", t.name)

	clause, args, err := t.whereClause(where)
	if err != nil {
		return 0, err
	}
	query += clause

	var n int64
	if err := t.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows in %s: %w", t.name, err)
	}
	return n, nil
}

func (t *Table) whereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	names := sortedKeys(where)
	encoded, err := t.encodeValues(names, where)
	if err != nil {
		return "", nil, err
	}
	conds := make([]string, len(names))
	for i, n := range names {
		conds[i] = n + " = ?"
	}
	return " where " + strings.Join(conds, " and "), encoded, nil
}

func (t *Table) encodeValues(names []string, values map[string]any) ([]any, error) {
	encoded := make([]any, len(names))
	for i, n := range names {
		f, ok := t.byName[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q in table %s", ErrUnknownField, n, t.name)
		}
		v, err := f.Type.Encode(values[n])
		if err != nil {
			return nil, fmt.Errorf("encoding %s.%s: %w", t.name, n, err)
		}
		encoded[i] = v
	}
	return encoded, nil
}

// sortedKeys gives map iteration a stable order so generated SQL is
// deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
