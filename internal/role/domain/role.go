package domain

import "time"

// Name identifies a role definition.
type Name string

const (
	// Owner is the sentinel role that is granted every permission regardless of explicit grants.
	Owner  Name = "owner"
	Admin  Name = "admin"
	Member Name = "member"
)

// Resource tags used in grants.
const (
	ResourceQuotes       = "quotes"
	ResourceClients      = "clients"
	ResourceDocuments    = "documents"
	ResourceOrganization = "organization"
	ResourceBilling      = "billing"
	ResourceMembers      = "members"
)

// Action tags used in grants.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionManage = "manage"
	ActionInvite = "invite"
)

// Definition is a named bundle of permission grants.
type Definition struct {
	ID          string
	Name        Name
	DisplayName string
	CreatedAt   time.Time
}

// Permission grants Action on Resource to the role RoleID.
type Permission struct {
	RoleID   string
	Resource string
	Action   string
}

// Grant returns the "resource:action" token for a grant.
func Grant(resource, action string) string {
	return resource + ":" + action
}

// Token returns the grant token of p.
func (p Permission) Token() string {
	return Grant(p.Resource, p.Action)
}

// GrantSet is a set of "resource:action" tokens.
type GrantSet map[string]struct{}

// NewGrantSet builds a set from permission rows.
func NewGrantSet(perms []Permission) GrantSet {
	s := make(GrantSet, len(perms))
	for _, p := range perms {
		s[p.Token()] = struct{}{}
	}
	return s
}

// Has reports whether the set grants action on resource.
func (s GrantSet) Has(resource, action string) bool {
	_, ok := s[Grant(resource, action)]
	return ok
}
