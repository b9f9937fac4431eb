package repository

import (
	"context"

	"greenline/backend/internal/organization/domain"
)

// Repository defines persistence for organizations.
type Repository interface {
	GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error)
	// ListOrganizationsByIDs returns the organizations in ids ordered by creation time ascending.
	ListOrganizationsByIDs(ctx context.Context, ids []string) ([]*domain.Org, error)
	CreateOrganization(ctx context.Context, o *domain.Org) (*domain.Org, error)
	UpdateOrganization(ctx context.Context, id string, u domain.Update) (*domain.Org, error)
}
