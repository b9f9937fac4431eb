package repository

import (
	"context"
	"time"

	"greenline/backend/internal/document/domain"
)

// Repository defines persistence for the document library: folders, documents, their version
// history, activity log and per-user access overrides. Lookups and updates by id only see rows
// of orgID; a row of another organization is reported as not found (nil).
type Repository interface {
	// ListFolders returns the organization's folders by name.
	ListFolders(ctx context.Context, orgID string) ([]*domain.Folder, error)
	GetFolder(ctx context.Context, orgID, id string) (*domain.Folder, error)
	CreateFolder(ctx context.Context, f *domain.Folder) (*domain.Folder, error)
	UpdateFolder(ctx context.Context, orgID, id string, u domain.FolderUpdate) (*domain.Folder, error)
	DeleteFolder(ctx context.Context, orgID, id string) error

	// ListDocuments returns the organization's documents, most recently updated first.
	ListDocuments(ctx context.Context, orgID string) ([]*domain.Document, error)
	GetDocument(ctx context.Context, orgID, id string) (*domain.Document, error)
	CreateDocument(ctx context.Context, d *domain.Document) (*domain.Document, error)
	UpdateDocument(ctx context.Context, orgID, id string, u domain.DocumentUpdate, updatedBy string, at time.Time) (*domain.Document, error)
	// DeleteDocument removes the document with its versions, activity and overrides.
	DeleteDocument(ctx context.Context, orgID, id string) error

	// ListVersions returns the document's versions, newest first.
	ListVersions(ctx context.Context, documentID string) ([]*domain.Version, error)
	GetVersion(ctx context.Context, documentID string, number int) (*domain.Version, error)
	CreateVersion(ctx context.Context, v *domain.Version) (*domain.Version, error)

	// ListActivity returns the document's activity, newest first.
	ListActivity(ctx context.Context, documentID string) ([]*domain.Activity, error)
	LogActivity(ctx context.Context, a *domain.Activity) error

	ListOverrides(ctx context.Context, documentID string) ([]domain.Override, error)
	// ListUserOverrides returns the user's overrides across all documents.
	ListUserOverrides(ctx context.Context, userID string) ([]domain.Override, error)
	// GetOverride returns the user's override on the document, or nil.
	GetOverride(ctx context.Context, documentID, userID string) (*domain.Override, error)
	// ReplaceOverrides deletes the document's overrides and stores overrides in their place.
	ReplaceOverrides(ctx context.Context, documentID string, overrides []domain.Override) error
}
