package repository

import (
	"context"

	"greenline/backend/internal/identity/domain"
)

// Repository defines persistence for identities.
type Repository interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error)
	GetByProviderID(ctx context.Context, provider domain.IdentityProvider, providerID string) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) (*domain.Identity, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}
