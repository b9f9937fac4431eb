package repository

import (
	"context"

	"greenline/backend/internal/role/domain"
)

// Repository defines persistence for role definitions and their grants.
type Repository interface {
	GetRoleByID(ctx context.Context, id string) (*domain.Definition, error)
	GetRoleByName(ctx context.Context, name domain.Name) (*domain.Definition, error)
	ListRolesByIDs(ctx context.Context, ids []string) ([]*domain.Definition, error)
	ListPermissions(ctx context.Context, roleID string) ([]domain.Permission, error)
}
