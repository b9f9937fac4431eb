package repository

import (
	"context"
	"time"

	"greenline/backend/internal/membership/domain"
)

// Repository defines persistence for memberships and invitations.
type Repository interface {
	GetMembershipByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error)
	ListMembershipsByUser(ctx context.Context, userID string) ([]*domain.Membership, error)
	CreateMembership(ctx context.Context, m *domain.Membership) (*domain.Membership, error)
	CreateInvitation(ctx context.Context, inv *domain.Invitation) (*domain.Invitation, error)
	GetInvitation(ctx context.Context, id string) (*domain.Invitation, error)
	MarkInvitationAccepted(ctx context.Context, id string, at time.Time) (*domain.Invitation, error)
}
