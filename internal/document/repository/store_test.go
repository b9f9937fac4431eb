package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenline/backend/internal/document/domain"
	"greenline/backend/internal/store"
	"greenline/backend/internal/store/memstore"
)

func TestDocumentsRecentlyUpdatedFirst(t *testing.T) {
	m := memstore.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Seed(store.RelationDocuments,
		store.Row{"id": "old", "organization_id": "o1", "title": "Old", "updated_at": base},
		store.Row{"id": "new", "organization_id": "o1", "title": "New", "updated_at": base.Add(time.Hour)},
		store.Row{"id": "other", "organization_id": "o2", "title": "Other", "updated_at": base},
	)
	docs, err := NewStoreRepository(m).ListDocuments(context.Background(), "o1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "new", docs[0].ID)
	assert.Equal(t, "old", docs[1].ID)
}

func TestDocumentScopedToOrg(t *testing.T) {
	m := memstore.New()
	r := NewStoreRepository(m)
	ctx := context.Background()
	d, err := r.CreateDocument(ctx, &domain.Document{OrgID: "o1", Title: "Mowing", Status: domain.StatusDraft, CreatedBy: "u1"})
	require.NoError(t, err)
	assert.Nil(t, m.Rows(store.RelationDocuments)[0]["folder_id"])
	assert.Equal(t, d.CreatedAt, d.UpdatedAt, "updated_at defaults to created_at")

	got, err := r.GetDocument(ctx, "o2", d.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	st := domain.StatusPublished
	got, err = r.UpdateDocument(ctx, "o2", d.ID, domain.DocumentUpdate{Status: &st}, "u2", time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, "draft", m.Rows(store.RelationDocuments)[0].String("status"))

	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	got, err = r.UpdateDocument(ctx, "o1", d.ID, domain.DocumentUpdate{Status: &st}, "u2", at)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, got.Status)
	assert.Equal(t, "u2", got.UpdatedBy)
	assert.Equal(t, at, got.UpdatedAt)

	require.NoError(t, r.DeleteDocument(ctx, "o2", d.ID))
	assert.Len(t, m.Rows(store.RelationDocuments), 1)
}

func TestFolders(t *testing.T) {
	m := memstore.New()
	r := NewStoreRepository(m)
	ctx := context.Background()
	parent, err := r.CreateFolder(ctx, &domain.Folder{OrgID: "o1", Name: "Ops", CreatedBy: "u1"})
	require.NoError(t, err)
	_, err = r.CreateFolder(ctx, &domain.Folder{OrgID: "o1", Name: "Irrigation", ParentID: parent.ID})
	require.NoError(t, err)
	_, err = r.CreateFolder(ctx, &domain.Folder{OrgID: "o2", Name: "Foreign"})
	require.NoError(t, err)

	fs, err := r.ListFolders(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Equal(t, "Irrigation", fs[0].Name)
	assert.Equal(t, parent.ID, fs[0].ParentID)
	assert.Empty(t, fs[1].ParentID)

	root := ""
	name := "Operations"
	updated, err := r.UpdateFolder(ctx, "o1", fs[0].ID, domain.FolderUpdate{Name: &name, ParentID: &root})
	require.NoError(t, err)
	assert.Equal(t, "Operations", updated.Name)
	assert.Empty(t, updated.ParentID)
	missing, err := r.UpdateFolder(ctx, "o2", fs[0].ID, domain.FolderUpdate{Name: &name})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestVersionsAndActivity(t *testing.T) {
	m := memstore.New()
	r := NewStoreRepository(m)
	ctx := context.Background()
	for n := 1; n <= 3; n++ {
		_, err := r.CreateVersion(ctx, &domain.Version{DocumentID: "d1", VersionNumber: n, Title: "T", Status: domain.StatusDraft})
		require.NoError(t, err)
	}
	vs, err := r.ListVersions(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, vs, 3)
	assert.Equal(t, 3, vs[0].VersionNumber)

	v, err := r.GetVersion(ctx, "d1", 2)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 2, v.VersionNumber)
	v, err = r.GetVersion(ctx, "d1", 9)
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, r.LogActivity(ctx, &domain.Activity{DocumentID: "d1", UserID: "u1", Action: domain.ActivityCreated}))
	require.NoError(t, r.LogActivity(ctx, &domain.Activity{DocumentID: "d1", Action: domain.ActivityVersionReverted,
		Changes: map[string]string{"reverted_to_version": "2"}}))
	as, err := r.ListActivity(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, as, 2)
	assert.Equal(t, domain.ActivityVersionReverted, as[0].Action)
	assert.Equal(t, "2", as[0].Changes["reverted_to_version"])
	assert.Nil(t, m.Rows(store.RelationDocumentActivity)[1]["user_id"])
}

func TestReplaceOverrides(t *testing.T) {
	m := memstore.New()
	r := NewStoreRepository(m)
	ctx := context.Background()
	require.NoError(t, r.ReplaceOverrides(ctx, "d1", []domain.Override{{UserID: "u1", Access: domain.AccessView}}))
	require.NoError(t, r.ReplaceOverrides(ctx, "d2", []domain.Override{{UserID: "u1", Access: domain.AccessNone}}))
	require.NoError(t, r.ReplaceOverrides(ctx, "d1", []domain.Override{
		{UserID: "u2", Access: domain.AccessEdit}, {UserID: "u3", Access: domain.AccessNone},
	}))

	overrides, err := r.ListOverrides(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.Equal(t, "u2", overrides[0].UserID)
	assert.Equal(t, domain.AccessEdit, overrides[0].Access)

	o, err := r.GetOverride(ctx, "d1", "u1")
	require.NoError(t, err)
	assert.Nil(t, o)
	o, err = r.GetOverride(ctx, "d2", "u1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, domain.AccessNone, o.Access)

	mine, err := r.ListUserOverrides(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "d2", mine[0].DocumentID)
}
