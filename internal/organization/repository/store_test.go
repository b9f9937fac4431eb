package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenline/backend/internal/organization/domain"
	"greenline/backend/internal/store"
	"greenline/backend/internal/store/memstore"
)

func TestCreateAndGet(t *testing.T) {
	m := memstore.New()
	r := NewStoreRepository(m)
	ctx := context.Background()

	o := &domain.Org{Name: "Acme", OwnerID: "u1"}
	require.NoError(t, o.Validate())
	created, err := r.CreateOrganization(ctx, o)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, domain.TierSolo, created.SubscriptionTier)

	got, err := r.GetOrganizationByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acme", got.Slug)
	assert.Equal(t, "u1", got.OwnerID)

	got, err = r.GetOrganizationByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListOrganizationsByIDs_OldestFirst(t *testing.T) {
	m := memstore.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Seed(store.RelationOrganizations,
		store.Row{"id": "b", "name": "B", "created_at": base.Add(time.Hour)},
		store.Row{"id": "a", "name": "A", "created_at": base},
		store.Row{"id": "c", "name": "C", "created_at": base.Add(2 * time.Hour)},
	)
	orgs, err := NewStoreRepository(m).ListOrganizationsByIDs(context.Background(), []string{"b", "a"})
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, "a", orgs[0].ID)
	assert.Equal(t, "b", orgs[1].ID)
}

func TestUpdateOrganization(t *testing.T) {
	m := memstore.New()
	m.Seed(store.RelationOrganizations, store.Row{"id": "o1", "name": "Old", "slug": "old"})
	name := "New"
	got, err := NewStoreRepository(m).UpdateOrganization(context.Background(), "o1", domain.Update{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, "old", got.Slug)

	_, err = NewStoreRepository(m).UpdateOrganization(context.Background(), "missing", domain.Update{Name: &name})
	assert.ErrorIs(t, err, store.ErrNoRows)
}
