package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenline/backend/internal/session/domain"
	"greenline/backend/internal/store/memstore"
)

func TestCreateRevoke(t *testing.T) {
	r := NewStoreRepository(memstore.New())
	ctx := context.Background()
	now := time.Now().UTC()

	s, err := r.Create(ctx, &domain.Session{ID: "s1", UserID: "u1", RefreshTokenHash: "h1", ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.False(t, s.CreatedAt.IsZero())

	got, err := r.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.RevokedAt)
	assert.True(t, got.Active(now))

	require.NoError(t, r.Revoke(ctx, "s1", now))
	got, err = r.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	assert.False(t, got.Active(now))
	first := *got.RevokedAt

	// A second revoke leaves the original timestamp and is not an error.
	require.NoError(t, r.Revoke(ctx, "s1", now.Add(time.Minute)))
	require.NoError(t, r.Revoke(ctx, "missing", now))
	got, err = r.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, first.Equal(*got.RevokedAt))
}

func TestUpdateRefreshToken(t *testing.T) {
	r := NewStoreRepository(memstore.New())
	ctx := context.Background()
	_, err := r.Create(ctx, &domain.Session{ID: "s1", UserID: "u1", RefreshTokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	require.NoError(t, r.UpdateRefreshToken(ctx, "s1", "h2"))
	got, err := r.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.RefreshTokenHash)

	got, err = r.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}
