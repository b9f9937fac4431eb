package postgrest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenline/backend/internal/store"
)

type recorded struct {
	method string
	path   string
	query  map[string][]string
	header http.Header
	body   string
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.Query(),
			header: r.Header.Clone(),
			body:   string(b),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestSelect_EncodesQuery(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `[{"id":"q1","total":22.28}]`)
	c := New(srv.URL+"/rest/v1/", "anon")

	rows, err := c.Select(context.Background(), "quotes", store.Query{
		Columns: []string{"id", "total"},
		Filters: []store.Filter{store.Eq("organization_id", "o1"), store.In("status", []string{"draft", "sent"})},
		Order:   []store.Order{store.Desc("created_at")},
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 22.28, rows[0].Float("total"))

	got := (*calls)[0]
	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/rest/v1/quotes", got.path)
	assert.Equal(t, []string{"id,total"}, got.query["select"])
	assert.Equal(t, []string{"eq.o1"}, got.query["organization_id"])
	assert.Equal(t, []string{"in.(draft,sent)"}, got.query["status"])
	assert.Equal(t, []string{"created_at.desc"}, got.query["order"])
	assert.Equal(t, []string{"10"}, got.query["limit"])
	assert.Equal(t, "anon", got.header.Get("apikey"))
	assert.Equal(t, "Bearer anon", got.header.Get("Authorization"))
}

func TestSetAuthToken(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `[]`)
	c := New(srv.URL, "anon")
	c.SetAuthToken("user-jwt")

	_, err := c.Select(context.Background(), "quotes", store.Query{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer user-jwt", (*calls)[0].header.Get("Authorization"))

	c.SetAuthToken("")
	_, err = c.Select(context.Background(), "quotes", store.Query{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer anon", (*calls)[1].header.Get("Authorization"))
}

func TestInsert_ReturnsRepresentation(t *testing.T) {
	srv, calls := newServer(t, http.StatusCreated, `[{"id":"i1","name":"Mulch"}]`)
	c := New(srv.URL, "anon")

	row, err := c.Insert(context.Background(), "quote_items", store.Row{"name": "Mulch"})
	require.NoError(t, err)
	assert.Equal(t, "i1", row.String("id"))

	got := (*calls)[0]
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "return=representation", got.header.Get("Prefer"))
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(got.body), &body))
	assert.Equal(t, "Mulch", body["name"])
}

func TestUpdate_NoRows(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `[]`)
	c := New(srv.URL, "anon")

	_, err := c.Update(context.Background(), "quotes", store.Row{"status": "sent"}, store.Eq("id", "q1"))
	assert.ErrorIs(t, err, store.ErrNoRows)
	assert.Equal(t, http.MethodPatch, (*calls)[0].method)
	assert.Equal(t, []string{"eq.q1"}, (*calls)[0].query["id"])
}

func TestDelete(t *testing.T) {
	srv, calls := newServer(t, http.StatusNoContent, ``)
	c := New(srv.URL, "anon")

	require.NoError(t, c.Delete(context.Background(), "quote_items", store.Eq("id", "i1"), store.Eq("quote_id", "q1")))
	assert.Equal(t, http.MethodDelete, (*calls)[0].method)
	assert.Equal(t, []string{"eq.q1"}, (*calls)[0].query["quote_id"])

	assert.Error(t, c.Delete(context.Background(), "quote_items"))
	assert.Len(t, *calls, 1)
}

func TestRPC(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `"Q-2025-000001"`)
	c := New(srv.URL, "anon")

	v, err := c.RPC(context.Background(), "generate_quote_number", nil)
	require.NoError(t, err)
	assert.Equal(t, "Q-2025-000001", v)
	assert.Equal(t, "/rpc/generate_quote_number", (*calls)[0].path)
	assert.Equal(t, "{}", (*calls)[0].body)
}

func TestAPIError(t *testing.T) {
	srv, _ := newServer(t, http.StatusConflict, `{"code":"23505","message":"duplicate key value","details":"Key exists","hint":null}`)
	c := New(srv.URL, "anon")

	_, err := c.Insert(context.Background(), "organizations", store.Row{"slug": "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "23505", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "duplicate key value")
}

func TestFilterParams(t *testing.T) {
	v, err := filterParams([]store.Filter{
		store.Eq("deleted_at", nil),
		store.Neq("role", "owner"),
		store.In("name", []string{"a,b", "c"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "is.null", v.Get("deleted_at"))
	assert.Equal(t, "neq.owner", v.Get("role"))
	assert.Equal(t, `in.("a,b",c)`, v.Get("name"))

	_, err = filterParams([]store.Filter{{Column: "x", Op: "like"}})
	assert.Error(t, err)
}
