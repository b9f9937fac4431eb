package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenline/backend/internal/role/domain"
	"greenline/backend/internal/store"
	"greenline/backend/internal/store/memstore"
)

func seeded() *memstore.Store {
	m := memstore.New()
	m.Seed(store.RelationRoleDefinitions,
		store.Row{"id": "r-owner", "name": "owner", "display_name": "Owner"},
		store.Row{"id": "r-admin", "name": "admin", "display_name": "Administrator"},
	)
	m.Seed(store.RelationRolePermissions,
		store.Row{"role_id": "r-admin", "resource": "quotes", "action": "read"},
		store.Row{"role_id": "r-admin", "resource": "documents", "action": "read"},
	)
	return m
}

func TestGetRole(t *testing.T) {
	r := NewStoreRepository(seeded())
	ctx := context.Background()

	def, err := r.GetRoleByID(ctx, "r-admin")
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, domain.Admin, def.Name)
	assert.Equal(t, "Administrator", def.DisplayName)

	def, err = r.GetRoleByName(ctx, domain.Owner)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "r-owner", def.ID)

	def, err = r.GetRoleByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, def)
}

func TestListRolesByIDs(t *testing.T) {
	r := NewStoreRepository(seeded())
	defs, err := r.ListRolesByIDs(context.Background(), []string{"r-admin", "missing"})
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, domain.Admin, defs[0].Name)

	defs, err = r.ListRolesByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestListPermissions(t *testing.T) {
	r := NewStoreRepository(seeded())
	perms, err := r.ListPermissions(context.Background(), "r-admin")
	require.NoError(t, err)
	set := domain.NewGrantSet(perms)
	assert.True(t, set.Has("quotes", "read"))
	assert.True(t, set.Has("documents", "read"))
	assert.Len(t, set, 2)
}

func TestStoreErrorsPropagate(t *testing.T) {
	m := seeded()
	boom := errors.New("network down")
	m.FailOn(memstore.OpSelect, store.RelationRoleDefinitions, boom)

	_, err := NewStoreRepository(m).GetRoleByID(context.Background(), "r-admin")
	assert.ErrorIs(t, err, boom)
}

func TestSeedDefaults(t *testing.T) {
	m := memstore.New()
	ctx := context.Background()

	ids, err := SeedDefaults(ctx, m)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Len(t, m.Rows(store.RelationRoleDefinitions), 3)

	r := NewStoreRepository(m)
	perms, err := r.ListPermissions(ctx, ids[domain.Member])
	require.NoError(t, err)
	assert.True(t, domain.NewGrantSet(perms).Has(domain.ResourceQuotes, domain.ActionRead))
	assert.False(t, domain.NewGrantSet(perms).Has(domain.ResourceQuotes, domain.ActionDelete))

	owner, err := r.ListPermissions(ctx, ids[domain.Owner])
	require.NoError(t, err)
	assert.Empty(t, owner)

	again, err := SeedDefaults(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, ids, again)
	assert.Len(t, m.Rows(store.RelationRoleDefinitions), 3, "seeding twice adds nothing")
}
