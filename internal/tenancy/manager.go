// Package tenancy owns the organizations the signed-in user belongs to and which one is current.
// The current organization scopes every data operation and is persisted across restarts.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"greenline/backend/internal/audit"
	memberdomain "greenline/backend/internal/membership/domain"
	memberrepo "greenline/backend/internal/membership/repository"
	orgdomain "greenline/backend/internal/organization/domain"
	orgrepo "greenline/backend/internal/organization/repository"
	roledomain "greenline/backend/internal/role/domain"
	rolerepo "greenline/backend/internal/role/repository"
	"greenline/backend/internal/state"
)

// StateKey is the persisted-state key holding the selected organization id.
const StateKey = "currentOrganizationId"

var (
	// ErrNoOrganization is returned by mutations that need a current organization.
	ErrNoOrganization = errors.New("tenancy: no organization selected")
	// ErrOwnerMembership marks an organization that was created without its owner membership.
	ErrOwnerMembership = errors.New("tenancy: organization created but owner membership failed")
	// ErrInvitationNotFound is returned by AcceptInvitation for unknown ids.
	ErrInvitationNotFound = errors.New("tenancy: invitation not found")
	// ErrInvitationNotPending is returned by AcceptInvitation for accepted or revoked invitations.
	ErrInvitationNotPending = errors.New("tenancy: invitation is not pending")
	// ErrUnknownRole is returned when a role name has no role definition.
	ErrUnknownRole = errors.New("tenancy: unknown role")
)

// State is the load state of the Manager.
type State int

const (
	Unloaded State = iota
	Loading
	LoadedWithCurrent
	LoadedEmpty
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case LoadedWithCurrent:
		return "loaded"
	case LoadedEmpty:
		return "empty"
	default:
		return "unloaded"
	}
}

// ChangeFunc observes changes of the current organization. org is nil when nothing is selected.
type ChangeFunc func(ctx context.Context, org *orgdomain.WithRole)

type listener struct {
	id int
	fn ChangeFunc
}

// Manager is the tenancy context. It is safe for concurrent readers; mutations are expected from
// one logical caller at a time.
type Manager struct {
	orgs    orgrepo.Repository
	members memberrepo.Repository
	roles   rolerepo.Repository
	state   state.Store
	audit   audit.AuditLogger
	log     *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	st      State
	userID  string
	list    []orgdomain.WithRole
	current *orgdomain.WithRole

	lmu       sync.Mutex
	nextID    int
	listeners []listener
}

// NewManager returns an unloaded Manager. auditLogger and logger may be nil.
func NewManager(orgs orgrepo.Repository, members memberrepo.Repository, roles rolerepo.Repository, st state.Store, auditLogger audit.AuditLogger, logger *zap.Logger) *Manager {
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		orgs:    orgs,
		members: members,
		roles:   roles,
		state:   st,
		audit:   auditLogger,
		log:     logger,
		now:     time.Now,
	}
}

// LoadUserOrganizations loads userID's organizations (oldest first) with the user's role in each.
// When nothing is selected it restores the persisted selection if still valid, else picks the
// first organization. A selection the user no longer belongs to is dropped. An empty userID is a
// no-op. On failure the previous state is kept and the error is returned.
func (m *Manager) LoadUserOrganizations(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	m.mu.Lock()
	prevState := m.st
	m.st = Loading
	m.mu.Unlock()

	list, err := m.fetch(ctx, userID)
	if err != nil {
		m.log.Error("tenancy: load organizations failed", zap.String("user_id", userID), zap.Error(err))
		m.mu.Lock()
		m.st = prevState
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	before := m.currentIDLocked()
	if m.userID != userID {
		m.current = nil
	}
	m.userID = userID
	m.list = list
	if m.current != nil {
		if fresh := find(list, m.current.ID); fresh != nil {
			m.current = fresh
		} else {
			m.current = nil
		}
	}
	m.mu.Unlock()

	selected := ""
	if m.currentID() == "" && len(list) > 0 {
		id := m.persistedID(ctx)
		if find(list, id) == nil {
			id = list[0].ID
		}
		selected = id
	}

	m.mu.Lock()
	if selected != "" {
		m.current = find(m.list, selected)
	}
	if m.current != nil {
		m.st = LoadedWithCurrent
	} else {
		m.st = LoadedEmpty
	}
	after := m.currentIDLocked()
	m.mu.Unlock()

	switch {
	case selected != "":
		m.persist(ctx, selected)
	case len(list) == 0:
		m.forget(ctx)
	}
	if before != after {
		m.notify(ctx)
	}
	return nil
}

func (m *Manager) fetch(ctx context.Context, userID string) ([]orgdomain.WithRole, error) {
	memberships, err := m.members.ListMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	if len(memberships) == 0 {
		return nil, nil
	}
	var roleIDs []string
	for _, ms := range memberships {
		if ms.RoleID != "" && !slices.Contains(roleIDs, ms.RoleID) {
			roleIDs = append(roleIDs, ms.RoleID)
		}
	}
	roleNames := make(map[string]roledomain.Name, len(roleIDs))
	if len(roleIDs) > 0 {
		defs, err := m.roles.ListRolesByIDs(ctx, roleIDs)
		if err != nil {
			return nil, fmt.Errorf("list roles: %w", err)
		}
		for _, d := range defs {
			roleNames[d.ID] = d.Name
		}
	}
	byOrg := make(map[string]roledomain.Name, len(memberships))
	orgIDs := make([]string, 0, len(memberships))
	for _, ms := range memberships {
		name, ok := roleNames[ms.RoleID]
		if !ok {
			name = ms.Role
		}
		byOrg[ms.OrgID] = name
		orgIDs = append(orgIDs, ms.OrgID)
	}
	orgs, err := m.orgs.ListOrganizationsByIDs(ctx, orgIDs)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	out := make([]orgdomain.WithRole, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, orgdomain.WithRole{Org: *o, Role: byOrg[o.ID]})
	}
	return out, nil
}

// SetCurrentOrganization selects id and persists the selection. It reports false, changing
// nothing, when id is not among the loaded organizations.
func (m *Manager) SetCurrentOrganization(ctx context.Context, id string) bool {
	m.mu.Lock()
	org := find(m.list, id)
	if org == nil {
		m.mu.Unlock()
		m.log.Debug("tenancy: ignoring selection of non-member organization", zap.String("org_id", id))
		return false
	}
	changed := m.currentIDLocked() != id
	m.current = org
	m.st = LoadedWithCurrent
	m.mu.Unlock()

	m.persist(ctx, id)
	if changed {
		m.notify(ctx)
	}
	return true
}

// CreateOrganization inserts an organization owned by ownerID, adds the owner membership, reloads
// ownerID's organizations and selects the new one. The steps are not atomic: when the membership
// cannot be created the stored organization is returned with an error wrapping ErrOwnerMembership.
func (m *Manager) CreateOrganization(ctx context.Context, name, ownerID string) (*orgdomain.Org, error) {
	o := &orgdomain.Org{Name: name, OwnerID: ownerID}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("tenancy: %w", err)
	}
	created, err := m.orgs.CreateOrganization(ctx, o)
	if err != nil {
		m.log.Error("tenancy: create organization failed", zap.String("user_id", ownerID), zap.Error(err))
		return nil, fmt.Errorf("create organization: %w", err)
	}

	if err := m.addOwner(ctx, created.ID, ownerID); err != nil {
		m.log.Error("tenancy: owner membership failed; organization left without members",
			zap.String("org_id", created.ID), zap.String("user_id", ownerID), zap.Error(err))
		return created, fmt.Errorf("%w: %w", ErrOwnerMembership, err)
	}
	m.audit.LogEvent(ctx, created.ID, ownerID, audit.ActionOrganizationCreate, "organization",
		map[string]string{"name": created.Name, "slug": created.Slug})

	if err := m.LoadUserOrganizations(ctx, ownerID); err == nil {
		m.SetCurrentOrganization(ctx, created.ID)
	}
	return created, nil
}

func (m *Manager) addOwner(ctx context.Context, orgID, ownerID string) error {
	def, err := m.roles.GetRoleByName(ctx, roledomain.Owner)
	if err != nil {
		return fmt.Errorf("resolve owner role: %w", err)
	}
	if def == nil {
		return fmt.Errorf("%w: %s", ErrUnknownRole, roledomain.Owner)
	}
	_, err = m.members.CreateMembership(ctx, &memberdomain.Membership{
		OrgID:  orgID,
		UserID: ownerID,
		Role:   roledomain.Owner,
		RoleID: def.ID,
	})
	return err
}

// UpdateOrganization applies u to the current organization and reloads.
func (m *Manager) UpdateOrganization(ctx context.Context, u orgdomain.Update) (*orgdomain.Org, error) {
	m.mu.RLock()
	cur, userID := m.current, m.userID
	m.mu.RUnlock()
	if cur == nil {
		return nil, ErrNoOrganization
	}
	if u.Empty() {
		org := cur.Org
		return &org, nil
	}
	updated, err := m.orgs.UpdateOrganization(ctx, cur.ID, u)
	if err != nil {
		m.log.Error("tenancy: update organization failed", zap.String("org_id", cur.ID), zap.Error(err))
		return nil, fmt.Errorf("update organization: %w", err)
	}

	m.mu.Lock()
	if m.current != nil && m.current.ID == updated.ID {
		merged := *m.current
		merged.Org = *updated
		m.current = &merged
	}
	m.mu.Unlock()

	m.audit.LogEvent(ctx, updated.ID, userID, audit.ActionOrganizationUpdate, "organization", nil)
	_ = m.LoadUserOrganizations(ctx, userID)
	return updated, nil
}

// InviteTeamMember records a pending invitation to the current organization. An empty role means member.
func (m *Manager) InviteTeamMember(ctx context.Context, email string, role roledomain.Name) (*memberdomain.Invitation, error) {
	m.mu.RLock()
	cur, userID := m.current, m.userID
	m.mu.RUnlock()
	if cur == nil {
		return nil, ErrNoOrganization
	}
	inv := &memberdomain.Invitation{OrgID: cur.ID, Email: email, Role: role, InvitedBy: userID}
	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("tenancy: %w", err)
	}
	created, err := m.members.CreateInvitation(ctx, inv)
	if err != nil {
		m.log.Error("tenancy: invite failed", zap.String("org_id", cur.ID), zap.Error(err))
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	m.audit.LogEvent(ctx, cur.ID, userID, audit.ActionInvitationSent, "organization_invitations",
		map[string]string{"email": created.Email, "role": string(created.Role)})
	return created, nil
}

// AcceptInvitation turns a pending invitation into a membership of userID and marks it accepted.
// If marking fails after the membership exists, the membership is returned with the error.
func (m *Manager) AcceptInvitation(ctx context.Context, invitationID, userID string) (*memberdomain.Membership, error) {
	inv, err := m.members.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if inv == nil {
		return nil, ErrInvitationNotFound
	}
	if inv.Status != memberdomain.InvitationPending {
		return nil, ErrInvitationNotPending
	}
	def, err := m.roles.GetRoleByName(ctx, inv.Role)
	if err != nil {
		return nil, fmt.Errorf("resolve role: %w", err)
	}
	if def == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, inv.Role)
	}
	ms, err := m.members.CreateMembership(ctx, &memberdomain.Membership{
		OrgID:     inv.OrgID,
		UserID:    userID,
		Role:      inv.Role,
		RoleID:    def.ID,
		InvitedBy: inv.InvitedBy,
	})
	if err != nil {
		m.log.Error("tenancy: accept invitation failed", zap.String("org_id", inv.OrgID), zap.Error(err))
		return nil, fmt.Errorf("create membership: %w", err)
	}
	if _, err := m.members.MarkInvitationAccepted(ctx, inv.ID, m.now()); err != nil {
		m.log.Warn("tenancy: membership created but invitation not marked accepted",
			zap.String("invitation_id", inv.ID), zap.Error(err))
		return ms, fmt.Errorf("mark invitation accepted: %w", err)
	}
	m.audit.LogEvent(ctx, inv.OrgID, userID, audit.ActionInvitationAccepted, "organization_invitations",
		map[string]string{"invitation_id": inv.ID, "role": string(inv.Role)})

	m.mu.RLock()
	same := m.userID == userID
	m.mu.RUnlock()
	if same {
		_ = m.LoadUserOrganizations(ctx, userID)
	}
	return ms, nil
}

// ClearOrganization resets the manager and removes the persisted selection.
func (m *Manager) ClearOrganization(ctx context.Context) {
	m.mu.Lock()
	had := m.current != nil
	m.st = Unloaded
	m.userID = ""
	m.list = nil
	m.current = nil
	m.mu.Unlock()

	m.forget(ctx)
	if had {
		m.notify(ctx)
	}
}

// OnOrganizationChange registers fn for changes of the current organization id and returns an
// idempotent unsubscribe func.
func (m *Manager) OnOrganizationChange(fn ChangeFunc) func() {
	m.lmu.Lock()
	defer m.lmu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listener{id: id, fn: fn})
	return func() {
		m.lmu.Lock()
		defer m.lmu.Unlock()
		m.listeners = slices.DeleteFunc(m.listeners, func(l listener) bool { return l.id == id })
	}
}

func (m *Manager) notify(ctx context.Context) {
	cur := m.Current()
	m.lmu.Lock()
	ls := slices.Clone(m.listeners)
	m.lmu.Unlock()
	for _, l := range ls {
		m.call(ctx, l.fn, cur)
	}
}

func (m *Manager) call(ctx context.Context, fn ChangeFunc, org *orgdomain.WithRole) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("tenancy: organization change observer panicked", zap.Any("panic", r))
		}
	}()
	fn(ctx, org)
}

// Current returns a copy of the current organization, or nil.
func (m *Manager) Current() *orgdomain.WithRole {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	c := *m.current
	return &c
}

// CurrentOrganizationID returns the current organization id, or "".
func (m *Manager) CurrentOrganizationID() string {
	return m.currentID()
}

// OrganizationName returns the current organization's name, or "".
func (m *Manager) OrganizationName() string {
	if c := m.Current(); c != nil {
		return c.Name
	}
	return ""
}

// IsOwner reports whether the user owns the current organization.
func (m *Manager) IsOwner() bool {
	c := m.Current()
	return c != nil && c.Role == roledomain.Owner
}

// IsAdmin reports whether the user is owner or admin of the current organization.
func (m *Manager) IsAdmin() bool {
	c := m.Current()
	return c != nil && (c.Role == roledomain.Owner || c.Role == roledomain.Admin)
}

// Organizations returns the loaded organizations, oldest first.
func (m *Manager) Organizations() []orgdomain.WithRole {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.list)
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st
}

func (m *Manager) currentID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentIDLocked()
}

func (m *Manager) currentIDLocked() string {
	if m.current == nil {
		return ""
	}
	return m.current.ID
}

func (m *Manager) persistedID(ctx context.Context) string {
	if m.state == nil {
		return ""
	}
	id, ok, err := m.state.Get(ctx, StateKey)
	if err != nil {
		m.log.Warn("tenancy: read persisted organization failed", zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return id
}

func (m *Manager) persist(ctx context.Context, id string) {
	if m.state == nil {
		return
	}
	if err := m.state.Set(ctx, StateKey, id); err != nil {
		m.log.Warn("tenancy: persist organization failed", zap.String("org_id", id), zap.Error(err))
	}
}

func (m *Manager) forget(ctx context.Context) {
	if m.state == nil {
		return
	}
	if err := m.state.Delete(ctx, StateKey); err != nil {
		m.log.Warn("tenancy: clear persisted organization failed", zap.Error(err))
	}
}

func find(list []orgdomain.WithRole, id string) *orgdomain.WithRole {
	if id == "" {
		return nil
	}
	for i := range list {
		if list[i].ID == id {
			o := list[i]
			return &o
		}
	}
	return nil
}
