package repository

import (
	"context"
	"errors"
	"time"

	"greenline/backend/internal/membership/domain"
	roledomain "greenline/backend/internal/role/domain"
	"greenline/backend/internal/store"
)

type StoreRepository struct {
	client store.Client
}

// NewStoreRepository returns a membership repository over the remote store.
func NewStoreRepository(c store.Client) *StoreRepository {
	return &StoreRepository{client: c}
}

// GetMembershipByUserAndOrg returns the membership for the given user and org, or nil if not found.
// It returns an error only for store failures, not for missing rows.
func (r *StoreRepository) GetMembershipByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error) {
	row, err := store.First(ctx, r.client, store.RelationOrganizationMembers,
		store.Where(store.Eq("organization_id", orgID), store.Eq("user_id", userID)))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToMembership(row), nil
}

// ListMembershipsByUser returns every membership of userID.
func (r *StoreRepository) ListMembershipsByUser(ctx context.Context, userID string) ([]*domain.Membership, error) {
	rows, err := r.client.Select(ctx, store.RelationOrganizationMembers, store.Where(store.Eq("user_id", userID)))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Membership, len(rows))
	for i, row := range rows {
		out[i] = rowToMembership(row)
	}
	return out, nil
}

// CreateMembership inserts m and returns the stored membership.
func (r *StoreRepository) CreateMembership(ctx context.Context, m *domain.Membership) (*domain.Membership, error) {
	row := store.Row{
		"organization_id": m.OrgID,
		"user_id":         m.UserID,
		"role":            string(m.Role),
	}
	if m.RoleID != "" {
		row["role_id"] = m.RoleID
	}
	if m.InvitedBy != "" {
		row["invited_by"] = m.InvitedBy
	}
	stored, err := r.client.Insert(ctx, store.RelationOrganizationMembers, row)
	if err != nil {
		return nil, err
	}
	return rowToMembership(stored), nil
}

// CreateInvitation inserts inv and returns the stored invitation.
func (r *StoreRepository) CreateInvitation(ctx context.Context, inv *domain.Invitation) (*domain.Invitation, error) {
	row := store.Row{
		"organization_id": inv.OrgID,
		"email":           inv.Email,
		"role":            string(inv.Role),
		"status":          string(inv.Status),
	}
	if inv.InvitedBy != "" {
		row["invited_by"] = inv.InvitedBy
	}
	stored, err := r.client.Insert(ctx, store.RelationInvitations, row)
	if err != nil {
		return nil, err
	}
	return rowToInvitation(stored), nil
}

// GetInvitation returns the invitation for id, or nil if not found.
func (r *StoreRepository) GetInvitation(ctx context.Context, id string) (*domain.Invitation, error) {
	row, err := store.First(ctx, r.client, store.RelationInvitations, store.Where(store.Eq("id", id)))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToInvitation(row), nil
}

// MarkInvitationAccepted sets the invitation status to accepted. Only pending invitations match;
// store.ErrNoRows is returned otherwise.
func (r *StoreRepository) MarkInvitationAccepted(ctx context.Context, id string, at time.Time) (*domain.Invitation, error) {
	row, err := r.client.Update(ctx, store.RelationInvitations,
		store.Row{"status": string(domain.InvitationAccepted), "accepted_at": at.UTC()},
		store.Eq("id", id), store.Eq("status", string(domain.InvitationPending)))
	if err != nil {
		return nil, err
	}
	return rowToInvitation(row), nil
}

func rowToMembership(row store.Row) *domain.Membership {
	return &domain.Membership{
		ID:        row.String("id"),
		OrgID:     row.String("organization_id"),
		UserID:    row.String("user_id"),
		Role:      roledomain.Name(row.String("role")),
		RoleID:    row.String("role_id"),
		InvitedBy: row.String("invited_by"),
		CreatedAt: row.Time("created_at"),
	}
}

func rowToInvitation(row store.Row) *domain.Invitation {
	return &domain.Invitation{
		ID:         row.String("id"),
		OrgID:      row.String("organization_id"),
		Email:      row.String("email"),
		Role:       roledomain.Name(row.String("role")),
		Status:     domain.InvitationStatus(row.String("status")),
		InvitedBy:  row.String("invited_by"),
		AcceptedAt: row.TimePtr("accepted_at"),
		CreatedAt:  row.Time("created_at"),
	}
}
