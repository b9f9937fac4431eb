// Package auth defines the auth subsystem consumed by the session manager: users, sessions, the
// provider contract and auth-state change notifications. Providers live in subpackages (local, gotrue).
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotConfigured is returned by every call of the NotConfigured provider.
	ErrNotConfigured = errors.New("auth: provider is not configured; set SUPABASE_URL or JWT keys")
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrEmailAlreadyRegistered is returned by SignUp for an email that already has an account.
	ErrEmailAlreadyRegistered = errors.New("auth: email already registered")
	// ErrNoSession is returned by operations that need a signed-in user.
	ErrNoSession = errors.New("auth: no active session")
	// ErrUnsupportedProvider is returned by SignInWithOAuth for providers without configuration.
	ErrUnsupportedProvider = errors.New("auth: unsupported oauth provider")
)

// User is an account as seen by the core.
type User struct {
	ID        string
	Email     string
	FullName  string
	Data      map[string]any
	CreatedAt time.Time
}

// Session is an authenticated session. AccessToken authorizes remote store calls.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

// UserID returns the session's user id, or "" for a nil session or user.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// Event is an auth-state change notification.
type Event string

const (
	EventInitialSession   Event = "INITIAL_SESSION"
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventUserUpdated      Event = "USER_UPDATED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
)

// StateChangeFunc observes auth-state changes. session is nil after sign-out.
type StateChangeFunc func(ctx context.Context, event Event, session *Session)

// SignUpParams are the inputs of SignUp. Data is stored as user metadata (e.g. full_name).
type SignUpParams struct {
	Email    string
	Password string
	Data     map[string]any
}

// UserUpdate changes the signed-in user. Nil Password and empty Data leave those unchanged.
type UserUpdate struct {
	Password *string
	Data     map[string]any
}

// OAuthRedirect is where the caller must send the user to continue an OAuth sign-in.
type OAuthRedirect struct {
	Provider string
	URL      string
}

// Provider is the auth subsystem.
type Provider interface {
	// GetSession restores the persisted session, or returns nil when there is none.
	GetSession(ctx context.Context) (*Session, error)
	// SignUp creates an account. The session is nil when the backend requires email confirmation.
	SignUp(ctx context.Context, p SignUpParams) (*User, *Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignInWithOAuth(ctx context.Context, provider, redirectTo string) (*OAuthRedirect, error)
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, u UserUpdate) (*User, error)
	// OnAuthStateChange registers fn and returns a func that removes it.
	OnAuthStateChange(fn StateChangeFunc) (unsubscribe func())
}

// NotConfigured returns a Provider whose every call fails with ErrNotConfigured.
func NotConfigured() Provider {
	return notConfigured{}
}

type notConfigured struct{}

func (notConfigured) GetSession(context.Context) (*Session, error) { return nil, ErrNotConfigured }

func (notConfigured) SignUp(context.Context, SignUpParams) (*User, *Session, error) {
	return nil, nil, ErrNotConfigured
}

func (notConfigured) SignInWithPassword(context.Context, string, string) (*Session, error) {
	return nil, ErrNotConfigured
}

func (notConfigured) SignInWithOAuth(context.Context, string, string) (*OAuthRedirect, error) {
	return nil, ErrNotConfigured
}

func (notConfigured) SignOut(context.Context) error { return ErrNotConfigured }

func (notConfigured) ResetPasswordForEmail(context.Context, string, string) error {
	return ErrNotConfigured
}

func (notConfigured) UpdateUser(context.Context, UserUpdate) (*User, error) {
	return nil, ErrNotConfigured
}

func (notConfigured) OnAuthStateChange(StateChangeFunc) func() { return func() {} }
