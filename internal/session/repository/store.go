package repository

import (
	"context"
	"errors"
	"time"

	"greenline/backend/internal/session/domain"
	"greenline/backend/internal/store"
)

type StoreRepository struct {
	client store.Client
}

// NewStoreRepository returns an auth session repository over the remote store.
func NewStoreRepository(c store.Client) *StoreRepository {
	return &StoreRepository{client: c}
}

// GetByID returns the session for id, or nil if not found.
func (r *StoreRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row, err := store.First(ctx, r.client, store.RelationAuthSessions, store.Where(store.Eq("id", id)))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Session{
		ID:               row.String("id"),
		UserID:           row.String("user_id"),
		RefreshTokenHash: row.String("refresh_token_hash"),
		ExpiresAt:        row.Time("expires_at"),
		RevokedAt:        row.TimePtr("revoked_at"),
		CreatedAt:        row.Time("created_at"),
	}, nil
}

// Create stores s. The id must be set by the caller since it is embedded in issued tokens.
func (r *StoreRepository) Create(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	stored, err := r.client.Insert(ctx, store.RelationAuthSessions, store.Row{
		"id":                 s.ID,
		"user_id":            s.UserID,
		"refresh_token_hash": s.RefreshTokenHash,
		"expires_at":         s.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}
	out := *s
	out.CreatedAt = stored.Time("created_at")
	return &out, nil
}

// Revoke marks the session revoked. Revoking an unknown or already revoked session is a no-op.
func (r *StoreRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.client.Update(ctx, store.RelationAuthSessions, store.Row{"revoked_at": at},
		store.Eq("id", id), store.Eq("revoked_at", nil))
	if errors.Is(err, store.ErrNoRows) {
		return nil
	}
	return err
}

func (r *StoreRepository) UpdateRefreshToken(ctx context.Context, id, refreshTokenHash string) error {
	_, err := r.client.Update(ctx, store.RelationAuthSessions, store.Row{"refresh_token_hash": refreshTokenHash}, store.Eq("id", id))
	return err
}
