package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenline/backend/internal/identity/domain"
	"greenline/backend/internal/store/memstore"
)

func TestCreateAndLookup(t *testing.T) {
	r := NewStoreRepository(memstore.New())
	ctx := context.Background()

	local, err := r.Create(ctx, &domain.Identity{UserID: "u1", Provider: domain.IdentityProviderLocal, ProviderID: "pat@example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotEmpty(t, local.ID)
	_, err = r.Create(ctx, &domain.Identity{UserID: "u1", Provider: domain.IdentityProviderGitHub, ProviderID: "4242"})
	require.NoError(t, err)

	got, err := r.GetByUserAndProvider(ctx, "u1", domain.IdentityProviderLocal)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, local.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	got, err = r.GetByProviderID(ctx, domain.IdentityProviderGitHub, "4242")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.PasswordHash)
	assert.Equal(t, "u1", got.UserID)

	got, err = r.GetByProviderID(ctx, domain.IdentityProviderGoogle, "4242")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdatePasswordHash(t *testing.T) {
	r := NewStoreRepository(memstore.New())
	ctx := context.Background()
	i, err := r.Create(ctx, &domain.Identity{UserID: "u1", Provider: domain.IdentityProviderLocal, ProviderID: "pat@example.com", PasswordHash: "old"})
	require.NoError(t, err)

	require.NoError(t, r.UpdatePasswordHash(ctx, i.ID, "new"))
	got, err := r.GetByUserAndProvider(ctx, "u1", domain.IdentityProviderLocal)
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
}
