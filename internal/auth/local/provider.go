// Package local is the self-hosted auth provider: bcrypt passwords, JWT sessions and OAuth
// authorize URLs, with users, identities and sessions kept in the remote store.
package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"greenline/backend/internal/auth"
	identitydomain "greenline/backend/internal/identity/domain"
	identityrepo "greenline/backend/internal/identity/repository"
	"greenline/backend/internal/security"
	sessiondomain "greenline/backend/internal/session/domain"
	sessionrepo "greenline/backend/internal/session/repository"
	"greenline/backend/internal/state"
	"greenline/backend/internal/store"
	userdomain "greenline/backend/internal/user/domain"
	userrepo "greenline/backend/internal/user/repository"
)

// DefaultResetTTL is how long a password reset token stays valid.
const DefaultResetTTL = time.Hour

// ResetSender delivers a password reset link. link already carries the token.
type ResetSender func(ctx context.Context, email, link string) error

// Config holds the provider's collaborators. Hasher, Tokens and State are required.
type Config struct {
	Hasher *security.Hasher
	Tokens *security.TokenProvider
	State  state.Store
	// OAuth maps provider names ("google", "github") to client configs; see OAuthConfigs.
	OAuth       map[string]*oauth2.Config
	ResetTTL    time.Duration
	ResetSender ResetSender
	Logger      *zap.Logger
}

// Provider implements auth.Provider.
type Provider struct {
	client     store.Client
	users      userrepo.Repository
	identities identityrepo.Repository
	sessions   sessionrepo.Repository
	hasher     *security.Hasher
	tokens     *security.TokenProvider
	state      state.Store
	oauth      map[string]*oauth2.Config
	resetTTL   time.Duration
	sendReset  ResetSender
	notifier   *auth.Notifier
	log        *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	current *auth.Session
}

var _ auth.Provider = (*Provider)(nil)

// New returns a Provider persisting accounts through c.
func New(c store.Client, cfg Config) *Provider {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.ResetTTL
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &Provider{
		client:     c,
		users:      userrepo.NewStoreRepository(c),
		identities: identityrepo.NewStoreRepository(c),
		sessions:   sessionrepo.NewStoreRepository(c),
		hasher:     cfg.Hasher,
		tokens:     cfg.Tokens,
		state:      cfg.State,
		oauth:      cfg.OAuth,
		resetTTL:   ttl,
		sendReset:  cfg.ResetSender,
		notifier:   auth.NewNotifier(logger),
		log:        logger,
		now:        time.Now,
	}
}

// OnAuthStateChange implements auth.Provider.
func (p *Provider) OnAuthStateChange(fn auth.StateChangeFunc) func() {
	return p.notifier.Subscribe(fn)
}

// GetSession returns the active session, restoring the persisted one when needed. A persisted
// session whose refresh token is invalid, rotated away, revoked or expired is discarded and nil returned.
func (p *Provider) GetSession(ctx context.Context) (*auth.Session, error) {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur != nil {
		return cur, nil
	}
	saved, err := auth.LoadSession(ctx, p.state)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, nil
	}
	s, err := p.refresh(ctx, saved.RefreshToken)
	if errors.Is(err, security.ErrInvalidToken) {
		p.log.Info("auth: discarding persisted session", zap.Error(err))
		return nil, p.setCurrent(ctx, nil)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// refresh validates refreshToken against its session row and rotates it.
func (p *Provider) refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	claims, err := p.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	row, err := p.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if !row.Active(p.now()) || !security.TokenHashEqual(refreshToken, row.RefreshTokenHash) {
		return nil, security.ErrInvalidToken
	}
	u, err := p.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, security.ErrInvalidToken
	}
	next, err := p.tokens.IssueRefresh(row.ID, u.ID)
	if err != nil {
		return nil, err
	}
	if err := p.sessions.UpdateRefreshToken(ctx, row.ID, security.HashToken(next.Token)); err != nil {
		return nil, err
	}
	access, err := p.tokens.IssueAccess(row.ID, u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	s := &auth.Session{AccessToken: access.Token, RefreshToken: next.Token, ExpiresAt: access.ExpiresAt, User: toAuthUser(u)}
	return s, p.setCurrent(ctx, s)
}

// SignUp creates the user and its local identity, then signs in.
func (p *Provider) SignUp(ctx context.Context, params auth.SignUpParams) (*auth.User, *auth.Session, error) {
	u := &userdomain.User{Email: params.Email, FullName: fullName(params.Data)}
	if err := u.Validate(); err != nil {
		return nil, nil, err
	}
	if err := security.ValidatePassword(params.Password); err != nil {
		return nil, nil, err
	}
	existing, err := p.users.GetByEmail(ctx, u.Email)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, auth.ErrEmailAlreadyRegistered
	}
	hashed, err := p.hasher.Hash(params.Password)
	if err != nil {
		return nil, nil, err
	}
	created, err := p.users.Create(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.identities.Create(ctx, &identitydomain.Identity{
		UserID:       created.ID,
		Provider:     identitydomain.IdentityProviderLocal,
		ProviderID:   created.Email,
		PasswordHash: hashed,
	}); err != nil {
		return nil, nil, err
	}
	s, err := p.startSession(ctx, created)
	if err != nil {
		return toAuthUser(created), nil, err
	}
	p.notifier.Notify(ctx, auth.EventSignedIn, s)
	return s.User, s, nil
}

// SignInWithPassword authenticates with email and password.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, auth.ErrInvalidCredentials
	}
	u, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, auth.ErrInvalidCredentials
	}
	ident, err := p.identities.GetByUserAndProvider(ctx, u.ID, identitydomain.IdentityProviderLocal)
	if err != nil {
		return nil, err
	}
	if ident == nil || ident.PasswordHash == "" {
		return nil, auth.ErrInvalidCredentials
	}
	if err := p.hasher.Compare(ident.PasswordHash, password); err != nil {
		return nil, auth.ErrInvalidCredentials
	}
	s, err := p.startSession(ctx, u)
	if err != nil {
		return nil, err
	}
	p.notifier.Notify(ctx, auth.EventSignedIn, s)
	return s, nil
}

func (p *Provider) startSession(ctx context.Context, u *userdomain.User) (*auth.Session, error) {
	sessionID := uuid.New().String()
	refresh, err := p.tokens.IssueRefresh(sessionID, u.ID)
	if err != nil {
		return nil, err
	}
	access, err := p.tokens.IssueAccess(sessionID, u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	if _, err := p.sessions.Create(ctx, &sessiondomain.Session{
		ID:               sessionID,
		UserID:           u.ID,
		RefreshTokenHash: security.HashToken(refresh.Token),
		ExpiresAt:        refresh.ExpiresAt,
	}); err != nil {
		return nil, err
	}
	s := &auth.Session{AccessToken: access.Token, RefreshToken: refresh.Token, ExpiresAt: access.ExpiresAt, User: toAuthUser(u)}
	return s, p.setCurrent(ctx, s)
}

// SignInWithOAuth returns the provider's authorize URL. The code exchange happens on the redirect target.
func (p *Provider) SignInWithOAuth(_ context.Context, provider, redirectTo string) (*auth.OAuthRedirect, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	cfg, ok := p.oauth[name]
	if !ok || cfg == nil || cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: %q", auth.ErrUnsupportedProvider, provider)
	}
	c := *cfg
	if redirectTo != "" {
		c.RedirectURL = redirectTo
	}
	return &auth.OAuthRedirect{
		Provider: name,
		URL:      c.AuthCodeURL(uuid.New().String(), oauth2.AccessTypeOnline),
	}, nil
}

// SignOut revokes the session row and forgets the local session. The local session is cleared
// even when revocation fails.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur == nil {
		saved, err := auth.LoadSession(ctx, p.state)
		if err != nil {
			p.log.Warn("auth: read persisted session", zap.Error(err))
		}
		cur = saved
	}
	var revokeErr error
	if cur != nil {
		if claims, err := p.tokens.ValidateRefresh(cur.RefreshToken); err == nil {
			revokeErr = p.sessions.Revoke(ctx, claims.SessionID, p.now().UTC())
		}
	}
	if err := p.setCurrent(ctx, nil); err != nil {
		return err
	}
	p.notifier.Notify(ctx, auth.EventSignedOut, nil)
	if revokeErr != nil {
		return fmt.Errorf("auth: revoke session: %w", revokeErr)
	}
	return nil
}

// UpdateUser changes the signed-in user's password and/or full_name.
func (p *Provider) UpdateUser(ctx context.Context, upd auth.UserUpdate) (*auth.User, error) {
	s, err := p.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil || s.User == nil {
		return nil, auth.ErrNoSession
	}
	userID := s.User.ID
	if upd.Password != nil {
		if err := p.setPassword(ctx, userID, s.User.Email, *upd.Password); err != nil {
			return nil, err
		}
	}
	var u *userdomain.User
	if name, ok := upd.Data["full_name"].(string); ok {
		u, err = p.users.UpdateFullName(ctx, userID, strings.TrimSpace(name))
	} else {
		u, err = p.users.GetByID(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, auth.ErrNoSession
	}
	updated := *s
	updated.User = toAuthUser(u)
	if err := p.setCurrent(ctx, &updated); err != nil {
		return nil, err
	}
	p.notifier.Notify(ctx, auth.EventUserUpdated, &updated)
	return updated.User, nil
}

func (p *Provider) setPassword(ctx context.Context, userID, email, password string) error {
	if err := security.ValidatePassword(password); err != nil {
		return err
	}
	hashed, err := p.hasher.Hash(password)
	if err != nil {
		return err
	}
	ident, err := p.identities.GetByUserAndProvider(ctx, userID, identitydomain.IdentityProviderLocal)
	if err != nil {
		return err
	}
	if ident == nil {
		_, err = p.identities.Create(ctx, &identitydomain.Identity{
			UserID:       userID,
			Provider:     identitydomain.IdentityProviderLocal,
			ProviderID:   email,
			PasswordHash: hashed,
		})
		return err
	}
	return p.identities.UpdatePasswordHash(ctx, ident.ID, hashed)
}

func (p *Provider) setCurrent(ctx context.Context, s *auth.Session) error {
	p.mu.Lock()
	p.current = s
	p.mu.Unlock()
	if err := auth.SaveSession(ctx, p.state, s); err != nil {
		return fmt.Errorf("auth: persist session: %w", err)
	}
	return nil
}

func toAuthUser(u *userdomain.User) *auth.User {
	data := map[string]any{}
	if u.FullName != "" {
		data["full_name"] = u.FullName
	}
	return &auth.User{ID: u.ID, Email: u.Email, FullName: u.FullName, Data: data, CreatedAt: u.CreatedAt}
}

func fullName(data map[string]any) string {
	s, _ := data["full_name"].(string)
	return s
}
