package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpIn  Op = "in"
)

// Filter restricts a query to rows whose Column compares to Value with Op.
// For OpIn, Value is a []any.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq matches rows where column equals v.
func Eq(column string, v any) Filter {
	return Filter{Column: column, Op: OpEq, Value: v}
}

// Neq matches rows where column does not equal v.
func Neq(column string, v any) Filter {
	return Filter{Column: column, Op: OpNeq, Value: v}
}

// In matches rows where column equals any of vs.
func In[T any](column string, vs []T) Filter {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return Filter{Column: column, Op: OpIn, Value: out}
}

// Order sorts query results by Column.
type Order struct {
	Column     string
	Descending bool
}

// Asc orders by column ascending.
func Asc(column string) Order { return Order{Column: column} }

// Desc orders by column descending.
func Desc(column string) Order { return Order{Column: column, Descending: true} }

// Query describes a select: projected columns (empty means all), filters (AND), ordering, and limit (0 means none).
type Query struct {
	Columns []string
	Filters []Filter
	Order   []Order
	Limit   int
}

// Where returns a Query with the given filters.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

// OrderBy appends orderings to q.
func (q Query) OrderBy(o ...Order) Query {
	q.Order = append(append([]Order(nil), q.Order...), o...)
	return q
}

// Select sets the projected columns of q.
func (q Query) Select(columns ...string) Query {
	q.Columns = columns
	return q
}

// Row is one record of a relation keyed by column name.
type Row map[string]any

// String returns the column as a string; nil and missing columns yield "".
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the column as a float64. Numeric strings and json.Number are parsed; anything else yields 0.
func (r Row) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

// Int returns the column as an int64.
func (r Row) Int(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// Bool returns the column as a bool.
func (r Row) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Time returns the column as a time.Time. RFC 3339 strings are parsed; anything else yields the zero time.
func (r Row) Time(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case *time.Time:
		if v == nil {
			return time.Time{}
		}
		return *v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}

// TimePtr returns the column as a *time.Time; nil when missing, null, or unparsable.
func (r Row) TimePtr(key string) *time.Time {
	t := r.Time(key)
	if t.IsZero() {
		return nil
	}
	return &t
}

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
