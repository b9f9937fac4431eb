package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	roledomain "greenline/backend/internal/role/domain"
)

// Membership links a user to an organization with a role. RoleID references a role definition;
// legacy rows carry only the role name.
type Membership struct {
	ID        string
	OrgID     string
	UserID    string
	Role      roledomain.Name
	RoleID    string
	InvitedBy string
	CreatedAt time.Time
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
)

// Invitation is a pending offer of membership sent to an email address.
type Invitation struct {
	ID         string
	OrgID      string
	Email      string
	Role       roledomain.Name
	Status     InvitationStatus
	InvitedBy  string
	AcceptedAt *time.Time
	CreatedAt  time.Time
}

// Validate normalizes the email and defaults the role to member.
func (i *Invitation) Validate() error {
	i.Email = strings.ToLower(strings.TrimSpace(i.Email))
	if _, err := mail.ParseAddress(i.Email); err != nil {
		return errors.New("a valid email is required")
	}
	if i.Role == "" {
		i.Role = roledomain.Member
	}
	if i.Status == "" {
		i.Status = InvitationPending
	}
	return nil
}
