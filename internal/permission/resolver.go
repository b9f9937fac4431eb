// Package permission resolves what the signed-in user may do in the current organization.
//
// The resolver caches one grant set for the current (organization, user) pair. It is reloaded
// whenever either changes and answers point queries synchronously. Anything it cannot prove is
// denied: a missing membership, a membership whose role definition is gone, a store failure, or a
// cache that belongs to another organization or user.
package permission

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"greenline/backend/internal/auth"
	memberdomain "greenline/backend/internal/membership/domain"
	orgdomain "greenline/backend/internal/organization/domain"
	roledomain "greenline/backend/internal/role/domain"
	"greenline/backend/internal/session"
	"greenline/backend/internal/tenancy"
)

// Requirement is a (resource, action) pair a caller may need.
type Requirement struct {
	Resource string
	Action   string
}

// Require is shorthand for Requirement{resource, action}.
func Require(resource, action string) Requirement {
	return Requirement{Resource: resource, Action: action}
}

func (r Requirement) String() string {
	return roledomain.Grant(r.Resource, r.Action)
}

// Memberships looks up a user's membership in an organization.
type Memberships interface {
	GetMembershipByUserAndOrg(ctx context.Context, userID, orgID string) (*memberdomain.Membership, error)
}

// Roles resolves role definitions and their grants.
type Roles interface {
	GetRoleByID(ctx context.Context, id string) (*roledomain.Definition, error)
	GetRoleByName(ctx context.Context, name roledomain.Name) (*roledomain.Definition, error)
	ListPermissions(ctx context.Context, roleID string) ([]roledomain.Permission, error)
}

// Users is the identity dependency (the session manager).
type Users interface {
	CurrentUserID() string
	OnUserChange(fn session.UserChangeFunc) func()
}

// Organizations is the tenancy dependency (the tenancy manager).
type Organizations interface {
	CurrentOrganizationID() string
	OnOrganizationChange(fn tenancy.ChangeFunc) func()
}

type cacheKey struct {
	orgID  string
	userID string
}

// Resolver is the permission resolver.
type Resolver struct {
	members Memberships
	roles   Roles
	users   Users
	orgs    Organizations
	log     *zap.Logger

	mu          sync.RWMutex
	gen         uint64
	key         cacheKey
	initialized bool
	loading     bool
	roleID      string
	roleName    roledomain.Name
	grants      roledomain.GrantSet
}

// NewResolver returns an empty Resolver. Call Bind to reload automatically on identity and
// organization changes. logger may be nil.
func NewResolver(members Memberships, roles Roles, users Users, orgs Organizations, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{members: members, roles: roles, users: users, orgs: orgs, log: logger}
}

// Bind reloads the resolver on every user or organization change and returns a func that stops it.
func (r *Resolver) Bind() func() {
	stopUsers := r.users.OnUserChange(func(ctx context.Context, _ *auth.User) {
		_ = r.Load(ctx)
	})
	stopOrgs := r.orgs.OnOrganizationChange(func(ctx context.Context, _ *orgdomain.WithRole) {
		_ = r.Load(ctx)
	})
	return func() {
		stopUsers()
		stopOrgs()
	}
}

func (r *Resolver) current() cacheKey {
	return cacheKey{orgID: r.orgs.CurrentOrganizationID(), userID: r.users.CurrentUserID()}
}

// Load fills the cache for the current organization and user. It is a no-op when the cache
// already belongs to them and clears the cache when either is missing. Lookup failures leave the
// grant set empty but the pair initialized; the error is returned.
func (r *Resolver) Load(ctx context.Context) error {
	key := r.current()
	if key.orgID == "" || key.userID == "" {
		r.Clear()
		return nil
	}

	r.mu.Lock()
	if r.initialized && r.key == key {
		r.mu.Unlock()
		return nil
	}
	r.gen++
	gen := r.gen
	r.key = key
	r.initialized = false
	r.loading = true
	r.roleID = ""
	r.roleName = ""
	r.grants = nil
	r.mu.Unlock()

	def, grants, err := r.fetch(ctx, key)
	if err != nil {
		r.log.Warn("permission: load failed; denying all",
			zap.String("org_id", key.orgID), zap.String("user_id", key.userID), zap.Error(err))
		def, grants = nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		r.log.Debug("permission: discarding stale load", zap.String("org_id", key.orgID), zap.String("user_id", key.userID))
		return err
	}
	if def != nil {
		r.roleID = def.ID
		r.roleName = def.Name
	}
	r.grants = grants
	r.initialized = true
	r.loading = false
	return err
}

func (r *Resolver) fetch(ctx context.Context, key cacheKey) (*roledomain.Definition, roledomain.GrantSet, error) {
	m, err := r.members.GetMembershipByUserAndOrg(ctx, key.userID, key.orgID)
	if err != nil {
		return nil, nil, fmt.Errorf("get membership: %w", err)
	}
	if m == nil {
		return nil, nil, nil
	}
	var def *roledomain.Definition
	if m.RoleID != "" {
		def, err = r.roles.GetRoleByID(ctx, m.RoleID)
	} else if m.Role != "" {
		def, err = r.roles.GetRoleByName(ctx, m.Role)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get role: %w", err)
	}
	if def == nil {
		r.log.Warn("permission: membership references no role definition",
			zap.String("org_id", key.orgID), zap.String("user_id", key.userID),
			zap.String("role_id", m.RoleID), zap.String("role", string(m.Role)))
		return nil, nil, nil
	}
	perms, err := r.roles.ListPermissions(ctx, def.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list permissions: %w", err)
	}
	return def, roledomain.NewGrantSet(perms), nil
}

// Can reports whether the current user may perform action on resource in the current
// organization. The owner role may do everything.
func (r *Resolver) Can(resource, action string) bool {
	key := r.current()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.initialized || r.key != key || key.orgID == "" || key.userID == "" {
		return false
	}
	if r.roleName == roledomain.Owner {
		return true
	}
	return r.grants.Has(resource, action)
}

// CanObject is Can for one object of resource that may carry an object-level override for the
// current user. A nil override defers to the role's grants; otherwise override lists every action
// the user may perform on the object, replacing the role's grants for it. The owner role may do
// everything.
func (r *Resolver) CanObject(resource, action string, override []string) bool {
	key := r.current()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.initialized || r.key != key || key.orgID == "" || key.userID == "" {
		return false
	}
	if r.roleName == roledomain.Owner {
		return true
	}
	if override != nil {
		return slices.Contains(override, action)
	}
	return r.grants.Has(resource, action)
}

// CanAny reports whether any of reqs is allowed. It is false for no requirements.
func (r *Resolver) CanAny(reqs ...Requirement) bool {
	for _, req := range reqs {
		if r.Can(req.Resource, req.Action) {
			return true
		}
	}
	return false
}

// Clear drops the cache and invalidates in-flight loads.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.key = cacheKey{}
	r.initialized = false
	r.loading = false
	r.roleID = ""
	r.roleName = ""
	r.grants = nil
}

// RoleName returns the cached role name, or "" when none is cached for the current pair.
func (r *Resolver) RoleName() roledomain.Name {
	key := r.current()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.key != key {
		return ""
	}
	return r.roleName
}

func (r *Resolver) RoleID() string {
	key := r.current()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.key != key {
		return ""
	}
	return r.roleID
}

// Loading reports whether a load is in flight.
func (r *Resolver) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

// Loaded reports whether the cache belongs to the current organization and user.
func (r *Resolver) Loaded() bool {
	key := r.current()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized && r.key == key
}
