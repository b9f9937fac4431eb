// Package gotrue implements auth.Provider against a GoTrue (Supabase Auth) endpoint using resty.
package gotrue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"greenline/backend/internal/auth"
	"greenline/backend/internal/state"
)

// APIError is an error body returned by GoTrue. Older releases use error/error_description,
// newer ones code/msg.
type APIError struct {
	Status           int    `json:"-"`
	ErrorCode        string `json:"error_code"`
	Err              string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e *APIError) Error() string {
	msg := e.Msg
	for _, m := range []string{e.Message, e.ErrorDescription, e.Err} {
		if msg == "" {
			msg = m
		}
	}
	return fmt.Sprintf("gotrue: %d %s", e.Status, msg)
}

// Option configures a Provider.
type Option func(*Provider)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.http.SetTimeout(d) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// Provider is an auth.Provider speaking the GoTrue REST protocol.
type Provider struct {
	http     *resty.Client
	baseURL  string
	apiKey   string
	state    state.Store
	notifier *auth.Notifier
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	current *auth.Session
}

var _ auth.Provider = (*Provider)(nil)

// New returns a Provider for the project at baseURL (e.g. https://x.supabase.co); the auth API
// is expected under /auth/v1. The session is persisted in st.
func New(baseURL, apiKey string, st state.Store, opts ...Option) *Provider {
	p := &Provider{
		http:    resty.New(),
		baseURL: strings.TrimRight(baseURL, "/") + "/auth/v1",
		apiKey:  apiKey,
		state:   st,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.notifier = auth.NewNotifier(p.log)
	p.http.SetBaseURL(p.baseURL)
	return p
}

type wireUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

type wireSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         *wireUser `json:"user"`
	// Signup without a session returns the user fields at the top level.
	wireUser
}

func (u *wireUser) toAuth() *auth.User {
	if u == nil || u.ID == "" {
		return nil
	}
	name, _ := u.UserMetadata["full_name"].(string)
	return &auth.User{ID: u.ID, Email: u.Email, FullName: name, Data: u.UserMetadata, CreatedAt: u.CreatedAt}
}

func (p *Provider) toSession(w *wireSession) *auth.Session {
	if w == nil || w.AccessToken == "" {
		return nil
	}
	exp := time.Unix(w.ExpiresAt, 0).UTC()
	if w.ExpiresAt == 0 {
		exp = p.now().UTC().Add(time.Duration(w.ExpiresIn) * time.Second)
	}
	return &auth.Session{AccessToken: w.AccessToken, RefreshToken: w.RefreshToken, ExpiresAt: exp, User: w.User.toAuth()}
}

func (p *Provider) request(ctx context.Context, bearer string) *resty.Request {
	if bearer == "" {
		bearer = p.apiKey
	}
	return p.http.R().
		SetContext(ctx).
		SetHeader("apikey", p.apiKey).
		SetHeader("Authorization", "Bearer "+bearer).
		SetError(&APIError{})
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("gotrue: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr, _ := resp.Error().(*APIError)
	if apiErr == nil {
		apiErr = &APIError{Msg: strings.TrimSpace(resp.String())}
	}
	apiErr.Status = resp.StatusCode()
	if apiErr.Err == "invalid_grant" || apiErr.ErrorCode == "invalid_credentials" {
		return fmt.Errorf("%w: %w", auth.ErrInvalidCredentials, apiErr)
	}
	if apiErr.ErrorCode == "user_already_exists" {
		return fmt.Errorf("%w: %w", auth.ErrEmailAlreadyRegistered, apiErr)
	}
	return apiErr
}

// OnAuthStateChange implements auth.Provider.
func (p *Provider) OnAuthStateChange(fn auth.StateChangeFunc) func() {
	return p.notifier.Subscribe(fn)
}

// GetSession returns the active session, restoring the persisted one through the refresh_token
// grant. A rejected refresh token discards the persisted session and returns nil.
func (p *Provider) GetSession(ctx context.Context) (*auth.Session, error) {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur != nil && p.now().Before(cur.ExpiresAt) {
		return cur, nil
	}
	if cur == nil {
		saved, err := auth.LoadSession(ctx, p.state)
		if err != nil {
			return nil, err
		}
		cur = saved
	}
	if cur == nil || cur.RefreshToken == "" {
		return nil, nil
	}
	var out wireSession
	resp, err := p.request(ctx, "").
		SetQueryParam("grant_type", "refresh_token").
		SetBody(map[string]string{"refresh_token": cur.RefreshToken}).
		SetResult(&out).
		Post("/token")
	if err := check(resp, err); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			p.log.Info("auth: discarding persisted session", zap.Error(err))
			return nil, p.setCurrent(ctx, nil)
		}
		return nil, err
	}
	s := p.toSession(&out)
	return s, p.setCurrent(ctx, s)
}

// SignUp implements auth.Provider.
func (p *Provider) SignUp(ctx context.Context, params auth.SignUpParams) (*auth.User, *auth.Session, error) {
	body := map[string]any{"email": params.Email, "password": params.Password}
	if len(params.Data) > 0 {
		body["data"] = params.Data
	}
	var out wireSession
	resp, err := p.request(ctx, "").SetBody(body).SetResult(&out).Post("/signup")
	if err := check(resp, err); err != nil {
		return nil, nil, err
	}
	s := p.toSession(&out)
	if s == nil {
		return out.wireUser.toAuth(), nil, nil
	}
	if err := p.setCurrent(ctx, s); err != nil {
		return s.User, s, err
	}
	p.notifier.Notify(ctx, auth.EventSignedIn, s)
	return s.User, s, nil
}

// SignInWithPassword implements auth.Provider.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	var out wireSession
	resp, err := p.request(ctx, "").
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).
		Post("/token")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	s := p.toSession(&out)
	if s == nil {
		return nil, errors.New("gotrue: token response without session")
	}
	if err := p.setCurrent(ctx, s); err != nil {
		return nil, err
	}
	p.notifier.Notify(ctx, auth.EventSignedIn, s)
	return s, nil
}

// SignInWithOAuth returns the /authorize URL; GoTrue handles the provider round trip.
func (p *Provider) SignInWithOAuth(_ context.Context, provider, redirectTo string) (*auth.OAuthRedirect, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return nil, auth.ErrUnsupportedProvider
	}
	q := url.Values{"provider": {provider}}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return &auth.OAuthRedirect{Provider: provider, URL: p.baseURL + "/authorize?" + q.Encode()}, nil
}

// SignOut revokes the session remotely and clears it locally; the local session is cleared even
// when the logout call fails.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur == nil {
		cur, _ = auth.LoadSession(ctx, p.state)
	}
	var remoteErr error
	if cur != nil && cur.AccessToken != "" {
		resp, err := p.request(ctx, cur.AccessToken).Post("/logout")
		remoteErr = check(resp, err)
	}
	if err := p.setCurrent(ctx, nil); err != nil {
		return err
	}
	p.notifier.Notify(ctx, auth.EventSignedOut, nil)
	var apiErr *APIError
	if errors.As(remoteErr, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return nil
	}
	return remoteErr
}

// ResetPasswordForEmail implements auth.Provider.
func (p *Provider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	req := p.request(ctx, "").SetBody(map[string]string{"email": email})
	if redirectTo != "" {
		req.SetQueryParam("redirect_to", redirectTo)
	}
	resp, err := req.Post("/recover")
	return check(resp, err)
}

// UpdateUser implements auth.Provider.
func (p *Provider) UpdateUser(ctx context.Context, u auth.UserUpdate) (*auth.User, error) {
	s, err := p.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, auth.ErrNoSession
	}
	body := map[string]any{}
	if u.Password != nil {
		body["password"] = *u.Password
	}
	if len(u.Data) > 0 {
		body["data"] = u.Data
	}
	var out wireUser
	resp, err := p.request(ctx, s.AccessToken).SetBody(body).SetResult(&out).Put("/user")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	updated := *s
	updated.User = out.toAuth()
	if err := p.setCurrent(ctx, &updated); err != nil {
		return nil, err
	}
	p.notifier.Notify(ctx, auth.EventUserUpdated, &updated)
	return updated.User, nil
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
