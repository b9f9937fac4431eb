package repository

import (
	"context"
	"errors"

	"greenline/backend/internal/identity/domain"
	"greenline/backend/internal/store"
)

type StoreRepository struct {
	client store.Client
}

// NewStoreRepository returns an identity repository over the remote store.
func NewStoreRepository(c store.Client) *StoreRepository {
	return &StoreRepository{client: c}
}

// GetByUserAndProvider returns the user's identity for provider, or nil if not found.
func (r *StoreRepository) GetByUserAndProvider(ctx context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error) {
	return r.first(ctx, store.Eq("user_id", userID), store.Eq("provider", string(provider)))
}

// GetByProviderID returns the identity with the provider's subject, or nil if not found.
func (r *StoreRepository) GetByProviderID(ctx context.Context, provider domain.IdentityProvider, providerID string) (*domain.Identity, error) {
	return r.first(ctx, store.Eq("provider", string(provider)), store.Eq("provider_id", providerID))
}

func (r *StoreRepository) first(ctx context.Context, filters ...store.Filter) (*domain.Identity, error) {
	row, err := store.First(ctx, r.client, store.RelationIdentities, store.Where(filters...))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Identity{
		ID:           row.String("id"),
		UserID:       row.String("user_id"),
		Provider:     domain.IdentityProvider(row.String("provider")),
		ProviderID:   row.String("provider_id"),
		PasswordHash: row.String("password_hash"),
		CreatedAt:    row.Time("created_at"),
	}, nil
}

func (r *StoreRepository) Create(ctx context.Context, i *domain.Identity) (*domain.Identity, error) {
	row := store.Row{
		"user_id":     i.UserID,
		"provider":    string(i.Provider),
		"provider_id": i.ProviderID,
	}
	if i.PasswordHash != "" {
		row["password_hash"] = i.PasswordHash
	}
	stored, err := r.client.Insert(ctx, store.RelationIdentities, row)
	if err != nil {
		return nil, err
	}
	out := *i
	out.ID = stored.String("id")
	out.CreatedAt = stored.Time("created_at")
	return &out, nil
}

func (r *StoreRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.client.Update(ctx, store.RelationIdentities, store.Row{"password_hash": passwordHash}, store.Eq("id", id))
	return err
}
