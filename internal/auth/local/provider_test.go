package local

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenline/backend/internal/auth"
	"greenline/backend/internal/security"
	"greenline/backend/internal/state"
	"greenline/backend/internal/store"
	"greenline/backend/internal/store/memstore"
)

type fixture struct {
	store  *memstore.Store
	state  *state.Memory
	tokens *security.TokenProvider
	sent   []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	m := memstore.New()
	m.Unique(store.RelationUsers, "email")
	return &fixture{store: m, state: state.NewMemory(), tokens: tokens}
}

func (f *fixture) provider() *Provider {
	return New(f.store, Config{
		Hasher: security.NewHasher(4),
		Tokens: f.tokens,
		State:  f.state,
		OAuth:  OAuthConfigs("google-id", "google-secret", "", ""),
		ResetSender: func(_ context.Context, email, link string) error {
			f.sent = append(f.sent, link)
			return nil
		},
	})
}

func recordEvents(p *Provider) *[]auth.Event {
	var events []auth.Event
	p.OnAuthStateChange(func(_ context.Context, ev auth.Event, _ *auth.Session) { events = append(events, ev) })
	return &events
}

func TestSignUpAndSignIn(t *testing.T) {
	f := newFixture(t)
	p := f.provider()
	events := recordEvents(p)
	ctx := context.Background()

	u, s, err := p.SignUp(ctx, auth.SignUpParams{Email: " Pat@Example.com ", Password: "correct-horse", Data: map[string]any{"full_name": "Pat Doe"}})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "pat@example.com", u.Email)
	assert.Equal(t, "Pat Doe", u.FullName)
	assert.Equal(t, u.ID, s.UserID())

	claims, err := f.tokens.ValidateAccess(s.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)

	_, _, err = p.SignUp(ctx, auth.SignUpParams{Email: "pat@example.com", Password: "another-pass"})
	assert.ErrorIs(t, err, auth.ErrEmailAlreadyRegistered)
	_, _, err = p.SignUp(ctx, auth.SignUpParams{Email: "new@example.com", Password: "short"})
	assert.ErrorIs(t, err, security.ErrWeakPassword)

	s2, err := p.SignInWithPassword(ctx, "PAT@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, s2.UserID())

	_, err = p.SignInWithPassword(ctx, "pat@example.com", "wrong-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = p.SignInWithPassword(ctx, "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	assert.Equal(t, []auth.Event{auth.EventSignedIn, auth.EventSignedIn}, *events)
}

func TestGetSession_RestoresAndRotates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, s, err := f.provider().SignUp(ctx, auth.SignUpParams{Email: "pat@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	restored, err := f.provider().GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, s.UserID(), restored.UserID())
	assert.NotEqual(t, s.RefreshToken, restored.RefreshToken)

	// The pre-rotation refresh token is no longer accepted.
	require.NoError(t, auth.SaveSession(ctx, f.state, s))
	stale, err := f.provider().GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, stale)
	_, ok, _ := f.state.Get(ctx, auth.SessionStateKey)
	assert.False(t, ok, "invalid persisted session is discarded")
}

func TestGetSession_None(t *testing.T) {
	f := newFixture(t)
	s, err := f.provider().GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSignOut_RevokesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.provider()
	events := recordEvents(p)
	_, _, err := p.SignUp(ctx, auth.SignUpParams{Email: "pat@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	require.NoError(t, p.SignOut(ctx))
	rows := f.store.Rows(store.RelationAuthSessions)
	require.Len(t, rows, 1)
	assert.NotNil(t, rows[0]["revoked_at"])

	s, err := f.provider().GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, []auth.Event{auth.EventSignedIn, auth.EventSignedOut}, *events)
}

func TestSignInWithOAuth(t *testing.T) {
	f := newFixture(t)
	p := f.provider()

	r, err := p.SignInWithOAuth(context.Background(), "Google", "http://localhost:5173/dashboard")
	require.NoError(t, err)
	assert.Equal(t, "google", r.Provider)
	u, err := url.Parse(r.URL)
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "google-id", u.Query().Get("client_id"))
	assert.Equal(t, "http://localhost:5173/dashboard", u.Query().Get("redirect_uri"))
	assert.NotEmpty(t, u.Query().Get("state"))

	_, err = p.SignInWithOAuth(context.Background(), "github", "")
	assert.ErrorIs(t, err, auth.ErrUnsupportedProvider)
}

func TestPasswordRecovery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.provider()
	_, _, err := p.SignUp(ctx, auth.SignUpParams{Email: "pat@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	events := recordEvents(p)

	require.NoError(t, p.ResetPasswordForEmail(ctx, "ghost@example.com", "http://app/reset-password"))
	assert.Empty(t, f.store.Rows(store.RelationPasswordResets))
	assert.Error(t, p.ResetPasswordForEmail(ctx, "not-an-email", ""))

	require.NoError(t, p.ResetPasswordForEmail(ctx, "pat@example.com", "http://app/reset-password"))
	require.Len(t, f.sent, 1)
	link, err := url.Parse(f.sent[0])
	require.NoError(t, err)
	assert.Equal(t, "/reset-password", link.Path)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)
	rows := f.store.Rows(store.RelationPasswordResets)
	require.Len(t, rows, 1)
	assert.NotContains(t, rows[0].String("token_hash"), token)

	s, err := p.VerifyRecovery(ctx, token)
	require.NoError(t, err)
	assert.NotNil(t, s)
	_, err = p.VerifyRecovery(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	newPassword := "battery-staple"
	_, err = p.UpdateUser(ctx, auth.UserUpdate{Password: &newPassword})
	require.NoError(t, err)
	_, err = p.SignInWithPassword(ctx, "pat@example.com", newPassword)
	assert.NoError(t, err)
	_, err = p.SignInWithPassword(ctx, "pat@example.com", "correct-horse")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	assert.Equal(t, auth.EventPasswordRecovery, (*events)[0])
	assert.Contains(t, *events, auth.EventUserUpdated)
}

func TestVerifyRecovery_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.provider()
	_, _, err := p.SignUp(ctx, auth.SignUpParams{Email: "pat@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	require.NoError(t, p.ResetPasswordForEmail(ctx, "pat@example.com", "http://app/reset-password"))
	token := f.sent[0][strings.Index(f.sent[0], "token=")+len("token="):]

	p.now = func() time.Time { return time.Now().Add(2 * DefaultResetTTL) }
	_, err = p.VerifyRecovery(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.provider()

	_, err := p.UpdateUser(ctx, auth.UserUpdate{Data: map[string]any{"full_name": "X"}})
	assert.ErrorIs(t, err, auth.ErrNoSession)

	_, _, err = p.SignUp(ctx, auth.SignUpParams{Email: "pat@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	u, err := p.UpdateUser(ctx, auth.UserUpdate{Data: map[string]any{"full_name": " Pat Doe "}})
	require.NoError(t, err)
	assert.Equal(t, "Pat Doe", u.FullName)

	s, err := p.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Pat Doe", s.User.FullName)

	weak := "short"
	_, err = p.UpdateUser(ctx, auth.UserUpdate{Password: &weak})
	assert.ErrorIs(t, err, security.ErrWeakPassword)
}
