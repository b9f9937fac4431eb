package app

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenline/backend/internal/auth"
	"greenline/backend/internal/config"
	"greenline/backend/internal/document"
	"greenline/backend/internal/guard"
	"greenline/backend/internal/quote"
	quotedomain "greenline/backend/internal/quote/domain"
	"greenline/backend/internal/security"
	"greenline/backend/internal/state"
	"greenline/backend/internal/store"
	telemetrydomain "greenline/backend/internal/telemetry/domain"
)

func memoryConfig() *config.Config {
	return &config.Config{
		AppBaseURL:    "http://localhost:5173",
		StoreBackend:  config.StoreBackendMemory,
		AuthProvider:  config.AuthProviderLocal,
		RemoteTimeout: "5s",
		BcryptCost:    4,
	}
}

func newMemoryApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	a, err := New(context.Background(), cfg, nil, WithState(state.NewMemory()), WithTokens(tokens))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestApp_SignUpToQuote(t *testing.T) {
	a := newMemoryApp(t, memoryConfig())
	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	assert.False(t, a.Session.IsAuthenticated())

	d, err := a.Guard.Navigate(ctx, "/quotes")
	require.NoError(t, err)
	assert.Equal(t, guard.SignInRequired, d.Outcome)

	_, err = a.Session.SignUp(ctx, "owner@example.com", "password123", "Fern & Stone", "Olive Owner")
	require.NoError(t, err)
	orgID := a.Tenancy.CurrentOrganizationID()
	require.NotEmpty(t, orgID)

	d, err = a.Guard.Navigate(ctx, "/quotes")
	require.NoError(t, err)
	assert.True(t, d.Allowed(), "the owner of the new organization may open quotes")
	assert.True(t, a.Permissions.Can("billing", "manage"))

	_, err = a.Store.Insert(ctx, store.RelationClients, store.Row{
		"organization_id": orgID, "name": "Pat Rivera", "address": "12 Elm St", "city": "Portland",
	})
	require.NoError(t, err)
	clients, err := a.Store.Select(ctx, store.RelationClients, store.Where(store.Eq("organization_id", orgID)))
	require.NoError(t, err)
	require.Len(t, clients, 1)

	q, err := a.Quotes.CreateQuote(ctx, quote.NewQuote{ClientID: clients[0].String("id"), TaxRate: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Q-%d-000001", time.Now().Year()), q.QuoteNumber)
	assert.Equal(t, "12 Elm St, Portland", q.ClientAddress)

	_, err = a.Quotes.AddItem(ctx, q.ID, quote.NewItem{Type: quotedomain.ItemPlant, Name: "Maple", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("10.125")})
	require.NoError(t, err)
	got, err := a.Quotes.LoadQuoteByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "22.28", got.TotalAmount.String())

	require.NoError(t, a.Session.SignOut(ctx))
	assert.False(t, a.Permissions.Can("quotes", "read"))
	assert.Empty(t, a.Quotes.Quotes(), "quote caches are dropped with the organization")
	d, err = a.Guard.Navigate(ctx, "/quotes")
	require.NoError(t, err)
	assert.Equal(t, guard.SignInRequired, d.Outcome)

	audits, err := a.Store.Select(ctx, store.RelationAuditLogs, store.Query{})
	require.NoError(t, err)
	assert.NotEmpty(t, audits)
}

func TestApp_NotConfigured(t *testing.T) {
	a, err := New(context.Background(), &config.Config{RemoteTimeout: "1s"}, nil, WithState(state.NewMemory()))
	require.NoError(t, err)
	defer a.Close(context.Background())

	err = a.Start(context.Background())
	assert.ErrorIs(t, err, auth.ErrNotConfigured)
	assert.False(t, a.Session.IsAuthenticated())

	_, err = a.Store.Select(context.Background(), store.RelationOrganizations, store.Query{})
	assert.ErrorIs(t, err, store.ErrNotConfigured)
}

func TestApp_RoutePolicyFile(t *testing.T) {
	cfg := memoryConfig()
	cfg.RoutePolicyFile = filepath.Join(t.TempDir(), "missing.rego")
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	_, err = New(context.Background(), cfg, nil, WithState(state.NewMemory()), WithTokens(tokens))
	assert.Error(t, err)
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	a := newMemoryApp(t, memoryConfig())
	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()))
}

func TestApp_DocumentsFollowOrganization(t *testing.T) {
	a := newMemoryApp(t, memoryConfig())
	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	_, err := a.Session.SignUp(ctx, "owner@example.com", "password123", "Fern & Stone", "Olive Owner")
	require.NoError(t, err)
	first := a.Tenancy.CurrentOrganizationID()

	d, err := a.Documents.CreateDocument(ctx, document.NewDocument{Title: "Mowing SOP"})
	require.NoError(t, err)
	require.Len(t, a.Documents.Documents(), 1)

	_, err = a.Tenancy.CreateOrganization(ctx, "Second Yard", a.Session.CurrentUserID())
	require.NoError(t, err)
	assert.Empty(t, a.Documents.Documents())
	assert.Nil(t, a.Documents.CurrentDocument())
	_, err = a.Documents.LoadDocument(ctx, d.ID)
	assert.ErrorIs(t, err, document.ErrDocumentNotFound)

	require.True(t, a.Tenancy.SetCurrentOrganization(ctx, first))
	require.NoError(t, a.Documents.LoadDocuments(ctx))
	assert.Len(t, a.Documents.Documents(), 1)
}

type slowEmitter struct {
	delay time.Duration
	done  chan string
}

func (e *slowEmitter) Emit(_ context.Context, ev *telemetrydomain.Event) error {
	time.Sleep(e.delay)
	e.done <- ev.EventType
	return nil
}

func TestApp_CloseDrainsTelemetry(t *testing.T) {
	em := &slowEmitter{delay: 100 * time.Millisecond, done: make(chan string, 64)}
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	a, err := New(context.Background(), memoryConfig(), nil, WithState(state.NewMemory()), WithTokens(tokens), WithEmitter(em))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	_, err = a.Session.SignUp(ctx, "owner@example.com", "password123", "Fern & Stone", "Olive Owner")
	require.NoError(t, err)

	require.NoError(t, a.Close(ctx))
	assert.NotEmpty(t, em.done, "close returns only after in-flight emits finish")
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, l)
	_, err = NewLogger("loud")
	assert.Error(t, err)
}
