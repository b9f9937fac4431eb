package repository

import (
	"context"

	"greenline/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	// ListByOrg returns up to limit audit logs of the organization, newest first.
	ListByOrg(ctx context.Context, orgID string, limit int) ([]*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
}
