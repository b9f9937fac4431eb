// Package postgres implements store.Client over a Postgres database with pgx/v5. Relations map
// to tables and remote procedures to SQL functions called with named arguments.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"greenline/backend/internal/store"
)

// ErrUnfiltered is returned for update and delete calls without filters.
var ErrUnfiltered = errors.New("postgres: update and delete require at least one filter")

// Querier is the subset of *pgxpool.Pool (or pgx.Tx) used by Store.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a store.Client backed by Postgres.
type Store struct {
	db Querier
}

// New returns a Store that runs statements on db (typically a *pgxpool.Pool).
func New(db Querier) *Store {
	return &Store{db: db}
}

// Select implements store.Client.
func (s *Store) Select(ctx context.Context, relation string, q store.Query) ([]store.Row, error) {
	sql, args, err := buildSelect(relation, q)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, sql, args)
}

// Insert implements store.Client.
func (s *Store) Insert(ctx context.Context, relation string, row store.Row) (store.Row, error) {
	sql, args := buildInsert(relation, row)
	rows, err := s.query(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNoRows
	}
	return rows[0], nil
}

// Update implements store.Client.
func (s *Store) Update(ctx context.Context, relation string, patch store.Row, filters ...store.Filter) (store.Row, error) {
	sql, args, err := buildUpdate(relation, patch, filters)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNoRows
	}
	return rows[0], nil
}

// Delete implements store.Client.
func (s *Store) Delete(ctx context.Context, relation string, filters ...store.Filter) error {
	sql, args, err := buildDelete(relation, filters)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("postgres: delete %s: %w", relation, err)
	}
	return nil
}

// RPC implements store.Client by calling the SQL function name with named arguments.
func (s *Store) RPC(ctx context.Context, name string, args map[string]any) (any, error) {
	sql, params := buildRPC(name, args)
	var out any
	if err := s.db.QueryRow(ctx, sql, params...).Scan(&out); err != nil {
		return nil, fmt.Errorf("postgres: rpc %s: %w", name, err)
	}
	return normalize(out), nil
}

func (s *Store) query(ctx context.Context, sql string, args []any) ([]store.Row, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	out := make([]store.Row, len(maps))
	for i, m := range maps {
		r := make(store.Row, len(m))
		for k, v := range m {
			r[k] = normalize(v)
		}
		out[i] = r
	}
	return out, nil
}

// normalize converts pgx wire types into the plain Go values the core reads through store.Row.
func normalize(v any) any {
	switch t := v.(type) {
	case [16]byte:
		return uuid.UUID(t).String()
	case pgtype.Numeric:
		if !t.Valid {
			return nil
		}
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}

func ident(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

type builder struct {
	sb   strings.Builder
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *builder) where(filters []store.Filter) error {
	if len(filters) == 0 {
		return nil
	}
	b.sb.WriteString(" WHERE ")
	for i, f := range filters {
		if i > 0 {
			b.sb.WriteString(" AND ")
		}
		col := ident(f.Column)
		switch f.Op {
		case store.OpEq:
			if f.Value == nil {
				b.sb.WriteString(col + " IS NULL")
				continue
			}
			b.sb.WriteString(col + " = " + b.arg(f.Value))
		case store.OpNeq:
			if f.Value == nil {
				b.sb.WriteString(col + " IS NOT NULL")
				continue
			}
			b.sb.WriteString(col + " IS DISTINCT FROM " + b.arg(f.Value))
		case store.OpIn:
			vs, _ := f.Value.([]any)
			if len(vs) == 0 {
				b.sb.WriteString("FALSE")
				continue
			}
			ph := make([]string, len(vs))
			for j, v := range vs {
				ph[j] = b.arg(v)
			}
			b.sb.WriteString(col + " IN (" + strings.Join(ph, ", ") + ")")
		default:
			return fmt.Errorf("postgres: unsupported filter operator %q", f.Op)
		}
	}
	return nil
}

func buildSelect(relation string, q store.Query) (string, []any, error) {
	var b builder
	b.sb.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		b.sb.WriteString("*")
	} else {
		cols := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			cols[i] = ident(c)
		}
		b.sb.WriteString(strings.Join(cols, ", "))
	}
	b.sb.WriteString(" FROM " + ident(relation))
	if err := b.where(q.Filters); err != nil {
		return "", nil, err
	}
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			parts[i] = ident(o.Column) + " " + dir
		}
		b.sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		b.sb.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))
	}
	return b.sb.String(), b.args, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildInsert(relation string, row store.Row) (string, []any) {
	var b builder
	b.sb.WriteString("INSERT INTO " + ident(relation))
	keys := sortedKeys(row)
	if len(keys) == 0 {
		b.sb.WriteString(" DEFAULT VALUES RETURNING *")
		return b.sb.String(), nil
	}
	cols := make([]string, len(keys))
	ph := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = ident(k)
		ph[i] = b.arg(row[k])
	}
	b.sb.WriteString(" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(ph, ", ") + ") RETURNING *")
	return b.sb.String(), b.args
}

func buildUpdate(relation string, patch store.Row, filters []store.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, ErrUnfiltered
	}
	if len(patch) == 0 {
		return "", nil, fmt.Errorf("postgres: update %s: empty patch", relation)
	}
	var b builder
	b.sb.WriteString("UPDATE " + ident(relation) + " SET ")
	for i, k := range sortedKeys(patch) {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString(ident(k) + " = " + b.arg(patch[k]))
	}
	if err := b.where(filters); err != nil {
		return "", nil, err
	}
	b.sb.WriteString(" RETURNING *")
	return b.sb.String(), b.args, nil
}

func buildDelete(relation string, filters []store.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, ErrUnfiltered
	}
	var b builder
	b.sb.WriteString("DELETE FROM " + ident(relation))
	if err := b.where(filters); err != nil {
		return "", nil, err
	}
	return b.sb.String(), b.args, nil
}

func buildRPC(name string, args map[string]any) (string, []any) {
	var b builder
	b.sb.WriteString("SELECT " + ident(name) + "(")
	for i, k := range sortedKeys(args) {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString(ident(k) + " => " + b.arg(args[k]))
	}
	b.sb.WriteString(")")
	return b.sb.String(), b.args
}
