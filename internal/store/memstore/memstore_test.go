package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenline/backend/internal/store"
)

func TestInsert_GeneratesIDAndCreatedAt(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, err := s.Insert(ctx, "things", store.Row{"name": "a"})
	require.NoError(t, err)
	b, err := s.Insert(ctx, "things", store.Row{"name": "b"})
	require.NoError(t, err)

	assert.NotEmpty(t, a.String("id"))
	assert.NotEqual(t, a.String("id"), b.String("id"))
	assert.True(t, b.Time("created_at").After(a.Time("created_at")), "created_at must be strictly increasing")
}

func TestSelect_FiltersOrderLimitProjection(t *testing.T) {
	s := New()
	s.Seed("quotes",
		store.Row{"id": "q1", "org": "o1", "n": 3},
		store.Row{"id": "q2", "org": "o2", "n": 1},
		store.Row{"id": "q3", "org": "o1", "n": 2},
		store.Row{"id": "q4", "org": "o1", "n": 5},
	)

	rows, err := s.Select(context.Background(), "quotes", store.Query{
		Columns: []string{"id"},
		Filters: []store.Filter{store.Eq("org", "o1"), store.Neq("id", "q4")},
		Order:   []store.Order{store.Asc("n")},
		Limit:   5,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "q3", rows[0].String("id"))
	assert.Equal(t, "q1", rows[1].String("id"))
	_, hasN := rows[0]["n"]
	assert.False(t, hasN, "projection should drop unselected columns")

	rows, err = s.Select(context.Background(), "quotes", store.Where(store.In("id", []string{"q2", "q4"})).OrderBy(store.Desc("n")))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "q4", rows[0].String("id"))

	rows, err = s.Select(context.Background(), "quotes", store.Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSelect_ReturnsCopies(t *testing.T) {
	s := New()
	s.Seed("t", store.Row{"id": "1", "v": "orig"})

	rows, err := s.Select(context.Background(), "t", store.Query{})
	require.NoError(t, err)
	rows[0]["v"] = "mutated"

	assert.Equal(t, "orig", s.Rows("t")[0].String("v"))
}

func TestUnique(t *testing.T) {
	s := New()
	s.Unique("members", "organization_id", "user_id")
	ctx := context.Background()

	_, err := s.Insert(ctx, "members", store.Row{"organization_id": "o1", "user_id": "u1"})
	require.NoError(t, err)
	_, err = s.Insert(ctx, "members", store.Row{"organization_id": "o1", "user_id": "u2"})
	require.NoError(t, err)

	_, err = s.Insert(ctx, "members", store.Row{"organization_id": "o1", "user_id": "u1"})
	var ce *ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "members", ce.Relation)
}

func TestUpdate(t *testing.T) {
	s := New()
	s.Seed("t", store.Row{"id": "1", "v": 1}, store.Row{"id": "2", "v": 1})
	ctx := context.Background()

	row, err := s.Update(ctx, "t", store.Row{"v": 9}, store.Eq("id", "2"))
	require.NoError(t, err)
	assert.Equal(t, float64(9), row.Float("v"))
	assert.Equal(t, float64(1), s.Rows("t")[0].Float("v"))

	_, err = s.Update(ctx, "t", store.Row{"v": 9}, store.Eq("id", "missing"))
	assert.ErrorIs(t, err, store.ErrNoRows)
}

func TestDelete(t *testing.T) {
	s := New()
	s.Seed("t", store.Row{"id": "1"}, store.Row{"id": "2"}, store.Row{"id": "3"})

	require.NoError(t, s.Delete(context.Background(), "t", store.In("id", []string{"1", "3"})))
	rows := s.Rows("t")
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].String("id"))
}

func TestRPC(t *testing.T) {
	s := New()
	s.RegisterRPC("echo", func(_ context.Context, args map[string]any) (any, error) {
		return args["v"], nil
	})

	v, err := s.RPC(context.Background(), "echo", map[string]any{"v": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", v)

	_, err = s.RPC(context.Background(), "missing", nil)
	assert.Error(t, err)
}

func TestFailOnAndCalls(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	s.FailOn(OpSelect, "t", boom)

	_, err := s.Select(context.Background(), "t", store.Query{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, s.Calls(OpSelect, "t"))

	s.ClearFailures()
	_, err = s.Select(context.Background(), "t", store.Query{})
	assert.NoError(t, err)
	assert.Equal(t, 2, s.Calls(OpSelect, "t"))
}

func TestCanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Insert(ctx, "t", store.Row{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Rows("t"))
}
