package repository

import (
	"context"
	"errors"

	"greenline/backend/internal/organization/domain"
	"greenline/backend/internal/store"
)

type StoreRepository struct {
	client store.Client
}

// NewStoreRepository returns an organization repository over the remote store.
func NewStoreRepository(c store.Client) *StoreRepository {
	return &StoreRepository{client: c}
}

// GetOrganizationByID returns the organization for id, or nil if not found.
// It returns an error only for store failures, not for missing rows.
func (r *StoreRepository) GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error) {
	row, err := store.First(ctx, r.client, store.RelationOrganizations, store.Where(store.Eq("id", id)))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToOrg(row), nil
}

// ListOrganizationsByIDs returns the organizations whose id is in ids, oldest first.
func (r *StoreRepository) ListOrganizationsByIDs(ctx context.Context, ids []string) ([]*domain.Org, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.client.Select(ctx, store.RelationOrganizations,
		store.Where(store.In("id", ids)).OrderBy(store.Asc("created_at")))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Org, len(rows))
	for i, row := range rows {
		out[i] = rowToOrg(row)
	}
	return out, nil
}

// CreateOrganization inserts o and returns the stored organization (with generated id and created_at).
func (r *StoreRepository) CreateOrganization(ctx context.Context, o *domain.Org) (*domain.Org, error) {
	row := store.Row{
		"name":                o.Name,
		"slug":                o.Slug,
		"owner_id":            o.OwnerID,
		"subscription_tier":   string(o.SubscriptionTier),
		"subscription_status": string(o.SubscriptionStatus),
	}
	if o.ID != "" {
		row["id"] = o.ID
	}
	stored, err := r.client.Insert(ctx, store.RelationOrganizations, row)
	if err != nil {
		return nil, err
	}
	return rowToOrg(stored), nil
}

// UpdateOrganization applies u to organization id and returns the updated row.
func (r *StoreRepository) UpdateOrganization(ctx context.Context, id string, u domain.Update) (*domain.Org, error) {
	patch := store.Row{}
	if u.Name != nil {
		patch["name"] = *u.Name
	}
	if u.Slug != nil {
		patch["slug"] = *u.Slug
	}
	if u.SubscriptionTier != nil {
		patch["subscription_tier"] = string(*u.SubscriptionTier)
	}
	if u.SubscriptionStatus != nil {
		patch["subscription_status"] = string(*u.SubscriptionStatus)
	}
	row, err := r.client.Update(ctx, store.RelationOrganizations, patch, store.Eq("id", id))
	if err != nil {
		return nil, err
	}
	return rowToOrg(row), nil
}

func rowToOrg(row store.Row) *domain.Org {
	return &domain.Org{
		ID:                 row.String("id"),
		Name:               row.String("name"),
		Slug:               row.String("slug"),
		OwnerID:            row.String("owner_id"),
		SubscriptionTier:   domain.Tier(row.String("subscription_tier")),
		SubscriptionStatus: domain.SubscriptionStatus(row.String("subscription_status")),
		CreatedAt:          row.Time("created_at"),
	}
}
