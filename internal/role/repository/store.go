package repository

import (
	"context"
	"errors"

	"greenline/backend/internal/role/domain"
	"greenline/backend/internal/store"
)

type StoreRepository struct {
	client store.Client
}

// NewStoreRepository returns a role repository over the remote store.
func NewStoreRepository(c store.Client) *StoreRepository {
	return &StoreRepository{client: c}
}

// GetRoleByID returns the role definition for id, or nil if not found.
func (r *StoreRepository) GetRoleByID(ctx context.Context, id string) (*domain.Definition, error) {
	return r.first(ctx, store.Eq("id", id))
}

// GetRoleByName returns the role definition named name, or nil if not found.
func (r *StoreRepository) GetRoleByName(ctx context.Context, name domain.Name) (*domain.Definition, error) {
	return r.first(ctx, store.Eq("name", string(name)))
}

func (r *StoreRepository) first(ctx context.Context, f store.Filter) (*domain.Definition, error) {
	row, err := store.First(ctx, r.client, store.RelationRoleDefinitions, store.Where(f))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDefinition(row), nil
}

// ListRolesByIDs returns the definitions whose id is in ids. Unknown ids are skipped.
func (r *StoreRepository) ListRolesByIDs(ctx context.Context, ids []string) ([]*domain.Definition, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.client.Select(ctx, store.RelationRoleDefinitions, store.Where(store.In("id", ids)))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Definition, len(rows))
	for i, row := range rows {
		out[i] = rowToDefinition(row)
	}
	return out, nil
}

// ListPermissions returns every grant of roleID.
func (r *StoreRepository) ListPermissions(ctx context.Context, roleID string) ([]domain.Permission, error) {
	rows, err := r.client.Select(ctx, store.RelationRolePermissions,
		store.Where(store.Eq("role_id", roleID)).Select("role_id", "resource", "action"))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Permission, len(rows))
	for i, row := range rows {
		out[i] = domain.Permission{RoleID: row.String("role_id"), Resource: row.String("resource"), Action: row.String("action")}
	}
	return out, nil
}

func rowToDefinition(row store.Row) *domain.Definition {
	return &domain.Definition{
		ID:          row.String("id"),
		Name:        domain.Name(row.String("name")),
		DisplayName: row.String("display_name"),
		CreatedAt:   row.Time("created_at"),
	}
}
