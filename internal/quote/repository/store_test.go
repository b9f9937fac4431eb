package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenline/backend/internal/quote/domain"
	"greenline/backend/internal/store"
	"greenline/backend/internal/store/memstore"
)

func TestQuotesNewestFirst(t *testing.T) {
	m := memstore.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Seed(store.RelationQuotes,
		store.Row{"id": "old", "organization_id": "o1", "created_at": base},
		store.Row{"id": "new", "organization_id": "o1", "created_at": base.Add(time.Hour)},
		store.Row{"id": "other", "organization_id": "o2", "created_at": base},
	)
	qs, err := NewStoreRepository(m).ListQuotesByOrg(context.Background(), "o1")
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "new", qs[0].ID)
	assert.Equal(t, "old", qs[1].ID)
}

func TestCreateQuoteAndTotals(t *testing.T) {
	m := memstore.New()
	r := NewStoreRepository(m)
	ctx := context.Background()

	q, err := r.CreateQuote(ctx, &domain.Quote{
		OrgID: "o1", ClientName: "Pat", QuoteNumber: "Q-2025-000001",
		Status: domain.StatusDraft, TaxRate: decimal.RequireFromString("8.25"), CreatedBy: "u1",
	})
	require.NoError(t, err)
	assert.True(t, q.TaxRate.Equal(decimal.RequireFromString("8.25")))
	assert.Nil(t, m.Rows(store.RelationQuotes)[0]["project_name"])

	totals := domain.Totals{
		Plants: decimal.RequireFromString("20.25"), Subtotal: decimal.RequireFromString("20.25"),
		Tax: decimal.RequireFromString("2.03"), Total: decimal.RequireFromString("22.28"),
	}
	updated, err := r.UpdateTotals(ctx, "o1", q.ID, totals)
	require.NoError(t, err)
	assert.True(t, updated.Totals().Equal(totals))
	assert.Equal(t, 22.28, m.Rows(store.RelationQuotes)[0]["total_amount"])
	assert.Equal(t, 1, m.Calls(memstore.OpUpdate, store.RelationQuotes), "totals are written in one update")
}

func TestQuoteScopedToOrg(t *testing.T) {
	m := memstore.New()
	m.Seed(store.RelationQuotes, store.Row{"id": "q1", "organization_id": "o1", "status": "draft", "total_amount": 10.0})
	r := NewStoreRepository(m)
	ctx := context.Background()

	q, err := r.GetQuote(ctx, "o1", "q1")
	require.NoError(t, err)
	require.NotNil(t, q)

	q, err = r.GetQuote(ctx, "o2", "q1")
	require.NoError(t, err)
	assert.Nil(t, q)

	q, err = r.UpdateStatus(ctx, "o2", "q1", domain.StatusSent)
	require.NoError(t, err)
	assert.Nil(t, q)
	q, err = r.UpdateTotals(ctx, "o2", "q1", domain.Totals{})
	require.NoError(t, err)
	assert.Nil(t, q)

	row := m.Rows(store.RelationQuotes)[0]
	assert.Equal(t, "draft", row["status"])
	assert.Equal(t, 10.0, row["total_amount"])

	q, err = r.UpdateStatus(ctx, "o1", "q1", domain.StatusSent)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, domain.StatusSent, q.Status)
}

func TestItems(t *testing.T) {
	m := memstore.New()
	r := NewStoreRepository(m)
	ctx := context.Background()

	a, err := r.CreateItem(ctx, &domain.Item{QuoteID: "q1", Type: domain.ItemPlant, Name: "Maple",
		Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("10.125"), TotalPrice: decimal.RequireFromString("20.25")})
	require.NoError(t, err)
	_, err = r.CreateItem(ctx, &domain.Item{QuoteID: "q1", Type: domain.ItemLabor, Name: "Planting",
		Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50), TotalPrice: decimal.NewFromInt(50)})
	require.NoError(t, err)

	items, err := r.ListItems(ctx, "q1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Maple", items[0].Name)
	assert.Equal(t, "10.125", items[0].UnitPrice.String())

	qty := decimal.NewFromInt(3)
	total := decimal.RequireFromString("30.38")
	u, err := r.UpdateItem(ctx, a.ID, domain.ItemUpdate{Quantity: &qty, TotalPrice: &total})
	require.NoError(t, err)
	assert.True(t, u.TotalPrice.Equal(total))

	require.NoError(t, r.DeleteItem(ctx, a.ID))
	got, err := r.GetItem(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNextQuoteNumber(t *testing.T) {
	m := memstore.New()
	r := NewStoreRepository(m)

	_, err := r.NextQuoteNumber(context.Background())
	assert.Error(t, err)

	m.RegisterRPC(QuoteNumberRPC, func(context.Context, map[string]any) (any, error) { return "Q-2025-000042", nil })
	n, err := r.NextQuoteNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Q-2025-000042", n)

	m.RegisterRPC(QuoteNumberRPC, func(context.Context, map[string]any) (any, error) { return nil, nil })
	_, err = r.NextQuoteNumber(context.Background())
	assert.Error(t, err)
}

func TestGetClientScopedToOrg(t *testing.T) {
	m := memstore.New()
	m.Seed(store.RelationClients, store.Row{"id": "c1", "organization_id": "o1", "name": "Pat", "city": "Springfield"})
	r := NewStoreRepository(m)

	c, err := r.GetClient(context.Background(), "o1", "c1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Springfield", c.City)

	c, err = r.GetClient(context.Background(), "o2", "c1")
	require.NoError(t, err)
	assert.Nil(t, c)
}
