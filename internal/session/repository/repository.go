package repository

import (
	"context"
	"time"

	"greenline/backend/internal/session/domain"
)

// Repository defines persistence for auth sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) (*domain.Session, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	UpdateRefreshToken(ctx context.Context, id, refreshTokenHash string) error
}
