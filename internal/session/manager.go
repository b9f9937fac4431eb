// Package session owns the authentication state of the running client: the current user and
// session, restored at startup and kept in sync with the auth provider's state changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"greenline/backend/internal/audit"
	"greenline/backend/internal/auth"
	orgdomain "greenline/backend/internal/organization/domain"
)

// ErrProvisionOrganization marks a sign-up whose account exists but whose organization could not be set up.
var ErrProvisionOrganization = errors.New("session: account created but organization provisioning failed")

// Redirect paths appended to the application base URL.
const (
	OAuthRedirectPath = "/dashboard"
	ResetRedirectPath = "/reset-password"
)

// Tenancy is the part of the tenancy context driven by authentication.
type Tenancy interface {
	LoadUserOrganizations(ctx context.Context, userID string) error
	CreateOrganization(ctx context.Context, name, ownerID string) (*orgdomain.Org, error)
	ClearOrganization(ctx context.Context)
}

// UserChangeFunc observes changes of the signed-in user's identity. user is nil after sign-out.
type UserChangeFunc func(ctx context.Context, user *auth.User)

type observer struct {
	id int
	fn UserChangeFunc
}

// Manager is the session manager.
type Manager struct {
	provider auth.Provider
	tenancy  Tenancy
	baseURL  string
	audit    audit.AuditLogger
	log      *zap.Logger

	mu          sync.RWMutex
	user        *auth.User
	session     *auth.Session
	loading     bool
	unsubscribe func()

	omu       sync.Mutex
	nextID    int
	observers []observer
}

// NewManager returns a Manager over provider. baseURL is the application origin used for OAuth and
// password-reset redirects. auditLogger and logger may be nil.
func NewManager(provider auth.Provider, tenancy Tenancy, baseURL string, auditLogger audit.AuditLogger, logger *zap.Logger) *Manager {
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		provider: provider,
		tenancy:  tenancy,
		baseURL:  strings.TrimRight(baseURL, "/"),
		audit:    auditLogger,
		log:      logger,
		loading:  true,
	}
}

// Initialize restores the persisted session, loads the restored user's organizations and
// subscribes to provider state changes. A restore failure is logged and returned; the manager is
// then unauthenticated but still subscribed.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	}()

	var restoreErr error
	sess, err := m.provider.GetSession(ctx)
	if err != nil {
		m.log.Error("session: restore failed", zap.Error(err))
		restoreErr = fmt.Errorf("restore session: %w", err)
	} else if sess != nil {
		m.apply(ctx, sess)
		m.loadTenancy(ctx, sess.UserID())
	}

	m.mu.Lock()
	if m.unsubscribe == nil {
		m.unsubscribe = m.provider.OnAuthStateChange(m.handleStateChange)
	}
	m.mu.Unlock()
	return restoreErr
}

func (m *Manager) handleStateChange(ctx context.Context, event auth.Event, sess *auth.Session) {
	m.apply(ctx, sess)
	if event == auth.EventSignedOut {
		m.tenancy.ClearOrganization(ctx)
		return
	}
	if id := sess.UserID(); id != "" {
		m.loadTenancy(ctx, id)
	}
}

func (m *Manager) loadTenancy(ctx context.Context, userID string) {
	if err := m.tenancy.LoadUserOrganizations(ctx, userID); err != nil {
		m.log.Warn("session: organization reload failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// apply replaces the session and user, notifying observers when the user id changes.
func (m *Manager) apply(ctx context.Context, sess *auth.Session) {
	var user *auth.User
	if sess != nil {
		user = sess.User
	}
	m.mu.Lock()
	before := m.currentUserIDLocked()
	m.session = sess
	m.user = user
	after := m.currentUserIDLocked()
	m.mu.Unlock()
	if before != after {
		m.notify(ctx, user)
	}
}

// SignUp creates an account and, when the provider returns a user, an organization it owns.
// A provisioning failure returns the created user with an error wrapping ErrProvisionOrganization;
// the account is kept.
func (m *Manager) SignUp(ctx context.Context, email, password, organizationName, fullName string) (*auth.User, error) {
	user, sess, err := m.provider.SignUp(ctx, auth.SignUpParams{
		Email:    email,
		Password: password,
		Data:     map[string]any{"full_name": fullName},
	})
	if err != nil {
		m.log.Warn("session: sign up failed", zap.Error(err))
		return nil, err
	}
	if sess != nil {
		m.apply(ctx, sess)
	}
	if user == nil {
		return nil, nil
	}
	m.audit.LogEvent(ctx, "", user.ID, audit.ActionSignUp, "auth", nil)

	if _, err := m.tenancy.CreateOrganization(ctx, organizationName, user.ID); err != nil {
		m.log.Error("session: organization provisioning failed", zap.String("user_id", user.ID), zap.Error(err))
		return user, fmt.Errorf("%w: %w", ErrProvisionOrganization, err)
	}
	return user, nil
}

// SignIn signs in with email and password.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	sess, err := m.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		m.log.Warn("session: sign in failed", zap.Error(err))
		return nil, err
	}
	m.apply(ctx, sess)
	m.audit.LogEvent(ctx, "", sess.UserID(), audit.ActionSignIn, "auth", map[string]string{"method": "password"})
	return sess, nil
}

// SignInWithOAuth starts an OAuth sign-in returning to the dashboard.
func (m *Manager) SignInWithOAuth(ctx context.Context, provider string) (*auth.OAuthRedirect, error) {
	r, err := m.provider.SignInWithOAuth(ctx, provider, m.baseURL+OAuthRedirectPath)
	if err != nil {
		m.log.Warn("session: oauth sign in failed", zap.String("provider", provider), zap.Error(err))
		return nil, err
	}
	return r, nil
}

// SignOut ends the session and clears the tenancy context. Local state is cleared even when the
// provider call fails; that failure is returned.
func (m *Manager) SignOut(ctx context.Context) error {
	userID := m.CurrentUserID()
	err := m.provider.SignOut(ctx)
	if err != nil {
		m.log.Warn("session: sign out failed", zap.String("user_id", userID), zap.Error(err))
	}
	m.apply(ctx, nil)
	m.tenancy.ClearOrganization(ctx)
	if userID != "" {
		m.audit.LogEvent(ctx, "", userID, audit.ActionSignOut, "auth", nil)
	}
	return err
}

// ResetPassword asks the provider to send a recovery link that returns to the reset-password page.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	if err := m.provider.ResetPasswordForEmail(ctx, email, m.baseURL+ResetRedirectPath); err != nil {
		m.log.Warn("session: password reset failed", zap.Error(err))
		return err
	}
	return nil
}

// UpdatePassword changes the signed-in user's password.
func (m *Manager) UpdatePassword(ctx context.Context, newPassword string) (*auth.User, error) {
	user, err := m.provider.UpdateUser(ctx, auth.UserUpdate{Password: &newPassword})
	if err != nil {
		m.log.Warn("session: update password failed", zap.Error(err))
		return nil, err
	}
	m.mu.Lock()
	if user != nil && m.user != nil && m.user.ID == user.ID {
		m.user = user
		if m.session != nil {
			s := *m.session
			s.User = user
			m.session = &s
		}
	}
	m.mu.Unlock()
	return user, nil
}

// OnUserChange registers fn for user identity changes and returns an idempotent unsubscribe func.
func (m *Manager) OnUserChange(fn UserChangeFunc) func() {
	m.omu.Lock()
	defer m.omu.Unlock()
	m.nextID++
	id := m.nextID
	m.observers = append(m.observers, observer{id: id, fn: fn})
	return func() {
		m.omu.Lock()
		defer m.omu.Unlock()
		m.observers = slices.DeleteFunc(m.observers, func(o observer) bool { return o.id == id })
	}
}

func (m *Manager) notify(ctx context.Context, user *auth.User) {
	m.omu.Lock()
	obs := slices.Clone(m.observers)
	m.omu.Unlock()
	for _, o := range obs {
		m.call(ctx, o.fn, user)
	}
}

func (m *Manager) call(ctx context.Context, fn UserChangeFunc, user *auth.User) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("session: user change observer panicked", zap.Any("panic", r))
		}
	}()
	fn(ctx, user)
}

// User returns the signed-in user, or nil.
func (m *Manager) User() *auth.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

func (m *Manager) Session() *auth.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *Manager) IsAuthenticated() bool {
	return m.User() != nil
}

// Loading reports whether Initialize has not finished yet.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// CurrentUserID returns the signed-in user's id, or "".
func (m *Manager) CurrentUserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentUserIDLocked()
}

func (m *Manager) currentUserIDLocked() string {
	if m.user == nil {
		return ""
	}
	return m.user.ID
}

// Close stops listening to provider state changes.
func (m *Manager) Close() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}
