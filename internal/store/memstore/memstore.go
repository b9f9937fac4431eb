// Package memstore is an in-memory store.Client. It backs component tests and the CLI's memory
// mode: rows get generated ids and strictly increasing created_at stamps, unique constraints can be
// declared per relation, remote procedures are registered as Go funcs, and failures can be injected
// per operation and relation.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"greenline/backend/internal/store"
)

// Operation names accepted by FailOn and Calls.
const (
	OpSelect = "select"
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
	OpRPC    = "rpc"
)

// RPCFunc implements a remote procedure.
type RPCFunc func(ctx context.Context, args map[string]any) (any, error)

// ConstraintError is returned when an insert violates a unique constraint.
type ConstraintError struct {
	Relation string
	Columns  []string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("memstore: duplicate key on %s (%s)", e.Relation, strings.Join(e.Columns, ", "))
}

// Store is an in-memory store.Client. The zero value is not usable; call New.
type Store struct {
	mu       sync.Mutex
	tables   map[string][]store.Row
	uniques  map[string][][]string
	rpcs     map[string]RPCFunc
	failures map[string]error
	calls    map[string]int
	now      func() time.Time
	last     time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		tables:   make(map[string][]store.Row),
		uniques:  make(map[string][][]string),
		rpcs:     make(map[string]RPCFunc),
		failures: make(map[string]error),
		calls:    make(map[string]int),
		now:      time.Now,
	}
}

// Unique declares that the combination of columns must be unique within relation.
func (s *Store) Unique(relation string, columns ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uniques[relation] = append(s.uniques[relation], columns)
}

// RegisterRPC installs fn as the remote procedure name.
func (s *Store) RegisterRPC(name string, fn RPCFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rpcs[name] = fn
}

// FailOn makes every op on relation (or RPC name) fail with err until ClearFailures. A nil err removes the failure.
func (s *Store) FailOn(op, relation string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := op + ":" + relation
	if err == nil {
		delete(s.failures, key)
		return
	}
	s.failures[key] = err
}

// ClearFailures removes all injected failures.
func (s *Store) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]error)
}

// Calls returns how many times op was invoked on relation (or RPC name), including failed calls.
func (s *Store) Calls(op, relation string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op+":"+relation]
}

// Seed inserts rows directly, bypassing failures and call counting. Missing ids and
// created_at stamps are generated as for Insert.
func (s *Store) Seed(relation string, rows ...store.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[relation] = append(s.tables[relation], s.prepare(r))
	}
}

// Rows returns a copy of every row in relation in insertion order.
func (s *Store) Rows(relation string) []store.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Row, 0, len(s.tables[relation]))
	for _, r := range s.tables[relation] {
		out = append(out, r.Clone())
	}
	return out
}

func (s *Store) begin(ctx context.Context, op, relation string) error {
	s.calls[op+":"+relation]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.failures[op+":"+relation]
}

func (s *Store) prepare(r store.Row) store.Row {
	row := r.Clone()
	if v, ok := row["id"]; !ok || v == nil || v == "" {
		row["id"] = uuid.New().String()
	}
	if _, ok := row["created_at"]; !ok {
		now := s.now().UTC()
		if !now.After(s.last) {
			now = s.last.Add(time.Microsecond)
		}
		s.last = now
		row["created_at"] = now
	}
	return row
}

// Select implements store.Client.
func (s *Store) Select(ctx context.Context, relation string, q store.Query) ([]store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpSelect, relation); err != nil {
		return nil, err
	}
	var out []store.Row
	for _, r := range s.tables[relation] {
		if matchAll(r, q.Filters) {
			out = append(out, r)
		}
	}
	if len(q.Order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Order {
				c := compare(out[i][o.Column], out[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Descending {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	result := make([]store.Row, len(out))
	for i, r := range out {
		result[i] = project(r, q.Columns)
	}
	return result, nil
}

// Insert implements store.Client.
func (s *Store) Insert(ctx context.Context, relation string, row store.Row) (store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpInsert, relation); err != nil {
		return nil, err
	}
	r := s.prepare(row)
	for _, cols := range s.uniques[relation] {
		for _, existing := range s.tables[relation] {
			if sameKey(existing, r, cols) {
				return nil, &ConstraintError{Relation: relation, Columns: cols}
			}
		}
	}
	s.tables[relation] = append(s.tables[relation], r)
	return r.Clone(), nil
}

// Update implements store.Client.
func (s *Store) Update(ctx context.Context, relation string, patch store.Row, filters ...store.Filter) (store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpUpdate, relation); err != nil {
		return nil, err
	}
	var first store.Row
	for _, r := range s.tables[relation] {
		if !matchAll(r, filters) {
			continue
		}
		for k, v := range patch {
			r[k] = v
		}
		if first == nil {
			first = r.Clone()
		}
	}
	if first == nil {
		return nil, store.ErrNoRows
	}
	return first, nil
}

// Delete implements store.Client.
func (s *Store) Delete(ctx context.Context, relation string, filters ...store.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpDelete, relation); err != nil {
		return err
	}
	kept := s.tables[relation][:0]
	for _, r := range s.tables[relation] {
		if !matchAll(r, filters) {
			kept = append(kept, r)
		}
	}
	s.tables[relation] = kept
	return nil
}

// RPC implements store.Client. Unregistered names fail.
func (s *Store) RPC(ctx context.Context, name string, args map[string]any) (any, error) {
	s.mu.Lock()
	if err := s.begin(ctx, OpRPC, name); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	fn, ok := s.rpcs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("memstore: function %s does not exist", name)
	}
	return fn(ctx, args)
}

func project(r store.Row, columns []string) store.Row {
	if len(columns) == 0 {
		return r.Clone()
	}
	out := make(store.Row, len(columns))
	for _, c := range columns {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

func sameKey(a, b store.Row, cols []string) bool {
	for _, c := range cols {
		if !equal(a[c], b[c]) {
			return false
		}
	}
	return true
}

func matchAll(r store.Row, filters []store.Filter) bool {
	for _, f := range filters {
		if !match(r, f) {
			return false
		}
	}
	return true
}

func match(r store.Row, f store.Filter) bool {
	v := r[f.Column]
	switch f.Op {
	case store.OpEq:
		return equal(v, f.Value)
	case store.OpNeq:
		return !equal(v, f.Value)
	case store.OpIn:
		vs, _ := f.Value.([]any)
		for _, want := range vs {
			if equal(v, want) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
