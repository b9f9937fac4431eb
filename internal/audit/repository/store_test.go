package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenline/backend/internal/audit/domain"
	"greenline/backend/internal/store"
	"greenline/backend/internal/store/memstore"
)

func TestCreate_NullsEmptyIDs(t *testing.T) {
	m := memstore.New()
	err := NewStoreRepository(m).Create(context.Background(), &domain.AuditLog{Action: "signup", Resource: "auth", CreatedAt: time.Now()})
	require.NoError(t, err)
	rows := m.Rows(store.RelationAuditLogs)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0]["organization_id"])
	assert.Nil(t, rows[0]["user_id"])
	_, ok := rows[0]["metadata"]
	assert.False(t, ok)
}

func TestListByOrg_NewestFirst(t *testing.T) {
	m := memstore.New()
	r := NewStoreRepository(m)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, action := range []string{"quote.create", "quote.status", "organization.update"} {
		require.NoError(t, r.Create(ctx, &domain.AuditLog{
			OrgID: "o1", UserID: "u1", Action: action, Resource: "quote",
			Metadata: map[string]string{"n": action}, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, r.Create(ctx, &domain.AuditLog{OrgID: "o2", Action: "quote.create", CreatedAt: base}))

	logs, err := r.ListByOrg(ctx, "o1", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "organization.update", logs[0].Action)
	assert.Equal(t, "quote.status", logs[1].Action)
	assert.Equal(t, map[string]string{"n": "quote.status"}, logs[1].Metadata)
}

func TestMetadata(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1"}, metadata(map[string]any{"a": "1", "b": 2}))
	assert.Nil(t, metadata("nope"))
}
