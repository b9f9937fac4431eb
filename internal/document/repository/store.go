package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"greenline/backend/internal/document/domain"
	"greenline/backend/internal/store"
)

type StoreRepository struct {
	client store.Client
}

// NewStoreRepository returns a document library repository over the remote store.
func NewStoreRepository(c store.Client) *StoreRepository {
	return &StoreRepository{client: c}
}

func (r *StoreRepository) ListFolders(ctx context.Context, orgID string) ([]*domain.Folder, error) {
	rows, err := r.client.Select(ctx, store.RelationFolders,
		store.Where(store.Eq("organization_id", orgID)).OrderBy(store.Asc("name")))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Folder, len(rows))
	for i, row := range rows {
		out[i] = rowToFolder(row)
	}
	return out, nil
}

// GetFolder returns the organization's folder for id, or nil if not found.
func (r *StoreRepository) GetFolder(ctx context.Context, orgID, id string) (*domain.Folder, error) {
	row, err := r.first(ctx, store.RelationFolders, store.Eq("id", id), store.Eq("organization_id", orgID))
	if row == nil || err != nil {
		return nil, err
	}
	return rowToFolder(row), nil
}

func (r *StoreRepository) CreateFolder(ctx context.Context, f *domain.Folder) (*domain.Folder, error) {
	stored, err := r.client.Insert(ctx, store.RelationFolders, store.Row{
		"organization_id":  f.OrgID,
		"parent_folder_id": nullable(f.ParentID),
		"name":             f.Name,
		"description":      f.Description,
		"created_by":       nullable(f.CreatedBy),
	})
	if err != nil {
		return nil, err
	}
	return rowToFolder(stored), nil
}

// UpdateFolder returns nil if the folder is not found.
func (r *StoreRepository) UpdateFolder(ctx context.Context, orgID, id string, u domain.FolderUpdate) (*domain.Folder, error) {
	patch := store.Row{}
	if u.Name != nil {
		patch["name"] = *u.Name
	}
	if u.Description != nil {
		patch["description"] = *u.Description
	}
	if u.ParentID != nil {
		patch["parent_folder_id"] = nullable(*u.ParentID)
	}
	row, err := r.update(ctx, store.RelationFolders, patch, orgID, id)
	if row == nil || err != nil {
		return nil, err
	}
	return rowToFolder(row), nil
}

func (r *StoreRepository) DeleteFolder(ctx context.Context, orgID, id string) error {
	return r.client.Delete(ctx, store.RelationFolders, store.Eq("id", id), store.Eq("organization_id", orgID))
}

func (r *StoreRepository) ListDocuments(ctx context.Context, orgID string) ([]*domain.Document, error) {
	rows, err := r.client.Select(ctx, store.RelationDocuments,
		store.Where(store.Eq("organization_id", orgID)).OrderBy(store.Desc("updated_at")))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Document, len(rows))
	for i, row := range rows {
		out[i] = rowToDocument(row)
	}
	return out, nil
}

// GetDocument returns the organization's document for id, or nil if not found.
func (r *StoreRepository) GetDocument(ctx context.Context, orgID, id string) (*domain.Document, error) {
	row, err := r.first(ctx, store.RelationDocuments, store.Eq("id", id), store.Eq("organization_id", orgID))
	if row == nil || err != nil {
		return nil, err
	}
	return rowToDocument(row), nil
}

func (r *StoreRepository) CreateDocument(ctx context.Context, d *domain.Document) (*domain.Document, error) {
	row := store.Row{
		"organization_id": d.OrgID,
		"folder_id":       nullable(d.FolderID),
		"title":           d.Title,
		"content":         d.Content,
		"status":          string(d.Status),
		"created_by":      nullable(d.CreatedBy),
		"updated_by":      nullable(d.UpdatedBy),
	}
	if !d.UpdatedAt.IsZero() {
		row["updated_at"] = d.UpdatedAt
	}
	stored, err := r.client.Insert(ctx, store.RelationDocuments, row)
	if err != nil {
		return nil, err
	}
	return rowToDocument(stored), nil
}

// UpdateDocument applies u and stamps updatedBy and at. It returns nil if the document is not found.
func (r *StoreRepository) UpdateDocument(ctx context.Context, orgID, id string, u domain.DocumentUpdate, updatedBy string, at time.Time) (*domain.Document, error) {
	patch := store.Row{"updated_by": nullable(updatedBy), "updated_at": at}
	if u.Title != nil {
		patch["title"] = *u.Title
	}
	if u.Content != nil {
		patch["content"] = *u.Content
	}
	if u.FolderID != nil {
		patch["folder_id"] = nullable(*u.FolderID)
	}
	if u.Status != nil {
		patch["status"] = string(*u.Status)
	}
	row, err := r.update(ctx, store.RelationDocuments, patch, orgID, id)
	if row == nil || err != nil {
		return nil, err
	}
	return rowToDocument(row), nil
}

func (r *StoreRepository) DeleteDocument(ctx context.Context, orgID, id string) error {
	for _, rel := range []string{store.RelationDocumentPermissions, store.RelationDocumentActivity, store.RelationDocumentVersions} {
		if err := r.client.Delete(ctx, rel, store.Eq("document_id", id)); err != nil {
			return fmt.Errorf("delete %s: %w", rel, err)
		}
	}
	return r.client.Delete(ctx, store.RelationDocuments, store.Eq("id", id), store.Eq("organization_id", orgID))
}

func (r *StoreRepository) ListVersions(ctx context.Context, documentID string) ([]*domain.Version, error) {
	rows, err := r.client.Select(ctx, store.RelationDocumentVersions,
		store.Where(store.Eq("document_id", documentID)).OrderBy(store.Desc("version_number")))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Version, len(rows))
	for i, row := range rows {
		out[i] = rowToVersion(row)
	}
	return out, nil
}

// GetVersion returns version number of the document, or nil if not found.
func (r *StoreRepository) GetVersion(ctx context.Context, documentID string, number int) (*domain.Version, error) {
	row, err := r.first(ctx, store.RelationDocumentVersions, store.Eq("document_id", documentID), store.Eq("version_number", number))
	if row == nil || err != nil {
		return nil, err
	}
	return rowToVersion(row), nil
}

func (r *StoreRepository) CreateVersion(ctx context.Context, v *domain.Version) (*domain.Version, error) {
	stored, err := r.client.Insert(ctx, store.RelationDocumentVersions, store.Row{
		"document_id":    v.DocumentID,
		"version_number": v.VersionNumber,
		"title":          v.Title,
		"content":        v.Content,
		"status":         string(v.Status),
		"created_by":     nullable(v.CreatedBy),
	})
	if err != nil {
		return nil, err
	}
	return rowToVersion(stored), nil
}

func (r *StoreRepository) ListActivity(ctx context.Context, documentID string) ([]*domain.Activity, error) {
	rows, err := r.client.Select(ctx, store.RelationDocumentActivity,
		store.Where(store.Eq("document_id", documentID)).OrderBy(store.Desc("created_at")))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Activity, len(rows))
	for i, row := range rows {
		out[i] = &domain.Activity{
			ID:         row.String("id"),
			DocumentID: row.String("document_id"),
			UserID:     row.String("user_id"),
			Action:     row.String("action"),
			Changes:    changes(row["changes"]),
			CreatedAt:  row.Time("created_at"),
		}
	}
	return out, nil
}

func (r *StoreRepository) LogActivity(ctx context.Context, a *domain.Activity) error {
	row := store.Row{
		"document_id": a.DocumentID,
		"user_id":     nullable(a.UserID),
		"action":      a.Action,
	}
	if len(a.Changes) > 0 {
		row["changes"] = a.Changes
	}
	_, err := r.client.Insert(ctx, store.RelationDocumentActivity, row)
	return err
}

func (r *StoreRepository) ListOverrides(ctx context.Context, documentID string) ([]domain.Override, error) {
	rows, err := r.client.Select(ctx, store.RelationDocumentPermissions,
		store.Where(store.Eq("document_id", documentID)).OrderBy(store.Asc("created_at")))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Override, len(rows))
	for i, row := range rows {
		out[i] = rowToOverride(row)
	}
	return out, nil
}

func (r *StoreRepository) ListUserOverrides(ctx context.Context, userID string) ([]domain.Override, error) {
	rows, err := r.client.Select(ctx, store.RelationDocumentPermissions, store.Where(store.Eq("user_id", userID)))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Override, len(rows))
	for i, row := range rows {
		out[i] = rowToOverride(row)
	}
	return out, nil
}

func (r *StoreRepository) GetOverride(ctx context.Context, documentID, userID string) (*domain.Override, error) {
	row, err := r.first(ctx, store.RelationDocumentPermissions, store.Eq("document_id", documentID), store.Eq("user_id", userID))
	if row == nil || err != nil {
		return nil, err
	}
	o := rowToOverride(row)
	return &o, nil
}

// ReplaceOverrides is not atomic: when an insert fails, the overrides stored before it remain.
func (r *StoreRepository) ReplaceOverrides(ctx context.Context, documentID string, overrides []domain.Override) error {
	if err := r.client.Delete(ctx, store.RelationDocumentPermissions, store.Eq("document_id", documentID)); err != nil {
		return fmt.Errorf("delete overrides: %w", err)
	}
	for _, o := range overrides {
		if _, err := r.client.Insert(ctx, store.RelationDocumentPermissions, store.Row{
			"document_id": documentID,
			"user_id":     o.UserID,
			"access":      string(o.Access),
		}); err != nil {
			return fmt.Errorf("insert override for %s: %w", o.UserID, err)
		}
	}
	return nil
}

// first returns the first matching row, or nil when none matches.
func (r *StoreRepository) first(ctx context.Context, relation string, filters ...store.Filter) (store.Row, error) {
	row, err := store.First(ctx, r.client, relation, store.Where(filters...))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

func (r *StoreRepository) update(ctx context.Context, relation string, patch store.Row, orgID, id string) (store.Row, error) {
	row, err := r.client.Update(ctx, relation, patch, store.Eq("id", id), store.Eq("organization_id", orgID))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func changes(v any) map[string]string {
	switch m := v.(type) {
	case map[string]string:
		return m
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, x := range m {
			out[k] = fmt.Sprint(x)
		}
		return out
	default:
		return nil
	}
}

func rowToFolder(row store.Row) *domain.Folder {
	return &domain.Folder{
		ID:          row.String("id"),
		OrgID:       row.String("organization_id"),
		ParentID:    row.String("parent_folder_id"),
		Name:        row.String("name"),
		Description: row.String("description"),
		CreatedBy:   row.String("created_by"),
		CreatedAt:   row.Time("created_at"),
	}
}

func rowToDocument(row store.Row) *domain.Document {
	d := &domain.Document{
		ID:        row.String("id"),
		OrgID:     row.String("organization_id"),
		FolderID:  row.String("folder_id"),
		Title:     row.String("title"),
		Content:   row.String("content"),
		Status:    domain.Status(row.String("status")),
		CreatedBy: row.String("created_by"),
		UpdatedBy: row.String("updated_by"),
		CreatedAt: row.Time("created_at"),
		UpdatedAt: row.Time("updated_at"),
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	return d
}

func rowToVersion(row store.Row) *domain.Version {
	return &domain.Version{
		ID:            row.String("id"),
		DocumentID:    row.String("document_id"),
		VersionNumber: int(row.Int("version_number")),
		Title:         row.String("title"),
		Content:       row.String("content"),
		Status:        domain.Status(row.String("status")),
		CreatedBy:     row.String("created_by"),
		CreatedAt:     row.Time("created_at"),
	}
}

func rowToOverride(row store.Row) domain.Override {
	return domain.Override{
		DocumentID: row.String("document_id"),
		UserID:     row.String("user_id"),
		Access:     domain.Access(row.String("access")),
	}
}
