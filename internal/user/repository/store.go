package repository

import (
	"context"
	"errors"

	"greenline/backend/internal/store"
	"greenline/backend/internal/user/domain"
)

type StoreRepository struct {
	client store.Client
}

// NewStoreRepository returns a user repository over the remote store.
func NewStoreRepository(c store.Client) *StoreRepository {
	return &StoreRepository{client: c}
}

// GetByID returns the user for id, or nil if not found.
func (r *StoreRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, store.Eq("id", id))
}

// GetByEmail returns the user for the normalized email, or nil if not found.
func (r *StoreRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, store.Eq("email", domain.NormalizeEmail(email)))
}

func (r *StoreRepository) first(ctx context.Context, f store.Filter) (*domain.User, error) {
	row, err := store.First(ctx, r.client, store.RelationUsers, store.Where(f))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToUser(row), nil
}

func (r *StoreRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	row := store.Row{"email": u.Email, "full_name": u.FullName}
	if u.ID != "" {
		row["id"] = u.ID
	}
	stored, err := r.client.Insert(ctx, store.RelationUsers, row)
	if err != nil {
		return nil, err
	}
	return rowToUser(stored), nil
}

func (r *StoreRepository) UpdateFullName(ctx context.Context, id, fullName string) (*domain.User, error) {
	row, err := r.client.Update(ctx, store.RelationUsers, store.Row{"full_name": fullName}, store.Eq("id", id))
	if err != nil {
		return nil, err
	}
	return rowToUser(row), nil
}

func rowToUser(row store.Row) *domain.User {
	return &domain.User{
		ID:        row.String("id"),
		Email:     row.String("email"),
		FullName:  row.String("full_name"),
		CreatedAt: row.Time("created_at"),
	}
}
