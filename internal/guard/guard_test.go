package guard

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	roledomain "greenline/backend/internal/role/domain"
)

type fakeSessions struct{ userID string }

func (f fakeSessions) IsAuthenticated() bool { return f.userID != "" }
func (f fakeSessions) CurrentUserID() string { return f.userID }

type fakeOrgs struct{ id string }

func (f fakeOrgs) CurrentOrganizationID() string { return f.id }

type fakePerms struct {
	grants  map[string]bool
	loads   int
	loadErr error
}

func (f *fakePerms) Load(context.Context) error {
	f.loads++
	return f.loadErr
}

func (f *fakePerms) Can(resource, action string) bool {
	return f.grants[roledomain.Grant(resource, action)]
}

type recordingAudit struct{ actions []string }

func (r *recordingAudit) LogEvent(_ context.Context, _, _, action, _ string, _ map[string]string) {
	r.actions = append(r.actions, action)
}

func policies(t *testing.T) map[string]Policy {
	t.Helper()
	rp, err := LoadRegoPolicy(context.Background(), "", nil)
	require.NoError(t, err)
	return map[string]Policy{"table": TablePolicy{}, "rego": rp}
}

func TestMatch(t *testing.T) {
	table := NewTable(DefaultRoutes)
	tests := []struct {
		path   string
		want   string
		params map[string]string
	}{
		{"/", RouteHome, nil},
		{"", RouteHome, nil},
		{"/quotes", RouteQuoteEstimator, nil},
		{"/quotes/", RouteQuoteEstimator, nil},
		{"/quotes?status=draft", RouteQuoteEstimator, nil},
		{"/quotes/q-123", RouteQuoteDetail, map[string]string{"id": "q-123"}},
		{"/quotes/q-123#items", RouteQuoteDetail, map[string]string{"id": "q-123"}},
		{"/settings/organization", RouteOrganizationSettings, nil},
		{"/settings/billing/", RouteBillingSettings, nil},
		{"/sop-library", RouteSOPLibrary, nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, params, ok := table.Match(tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.want, r.Name)
			assert.Equal(t, tt.params, params)
		})
	}

	for _, p := range []string{"/nope", "/quotes/a/b", "/settings/unknown"} {
		_, _, ok := table.Match(p)
		assert.False(t, ok, p)
	}
}

func TestDecisionTable(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		user   string
		grants []string
		want   Outcome
	}{
		{"public page anonymous", "/", "", nil, Allow},
		{"protected page anonymous", "/dashboard", "", nil, SignInRequired},
		{"protected page signed in", "/dashboard", "u1", nil, Allow},
		{"login signed in", "/login", "u1", nil, AlreadyAuthenticated},
		{"signup signed in", "/signup", "u1", nil, AlreadyAuthenticated},
		{"login anonymous", "/login", "", nil, Allow},
		{"quotes anonymous", "/quotes", "", nil, SignInRequired},
		{"quotes lacking grant", "/quotes", "u1", []string{"clients:read"}, Forbidden},
		{"quotes with grant", "/quotes", "u1", []string{"quotes:read"}, Allow},
		{"quote detail with grant", "/quotes/q1", "u1", []string{"quotes:read"}, Allow},
		{"organization settings either grant", "/settings/organization", "u1", []string{"organization:manage"}, Allow},
		{"organization settings none", "/settings/organization", "u1", []string{"organization:read"}, Forbidden},
		{"billing", "/settings/billing", "u1", []string{"billing:manage"}, Allow},
	}
	for pname, policy := range policies(t) {
		for _, tt := range tests {
			t.Run(pname+"/"+tt.name, func(t *testing.T) {
				grants := map[string]bool{}
				for _, g := range tt.grants {
					grants[g] = true
				}
				g := New(nil, fakeSessions{userID: tt.user}, fakeOrgs{id: "o1"}, &fakePerms{grants: grants}, policy, nil, nil)
				d, err := g.Navigate(context.Background(), tt.path)
				require.NoError(t, err)
				assert.Equal(t, tt.want, d.Outcome)
			})
		}
	}
}

func TestSignInRedirectPreservesPath(t *testing.T) {
	g := New(nil, fakeSessions{}, fakeOrgs{}, &fakePerms{}, nil, nil, nil)
	d, err := g.Navigate(context.Background(), "/quotes/q1?tab=items")
	require.NoError(t, err)
	assert.False(t, d.Allowed())

	u, err := url.Parse(d.Location)
	require.NoError(t, err)
	assert.Equal(t, SignInPath, u.Path)
	assert.Equal(t, "/quotes/q1?tab=items", u.Query().Get(RedirectParam))
}

func TestForbiddenRedirectsToDefaultAndAudits(t *testing.T) {
	perms := &fakePerms{}
	rec := &recordingAudit{}
	g := New(nil, fakeSessions{userID: "u1"}, fakeOrgs{id: "o1"}, perms, nil, rec, nil)

	d, err := g.Navigate(context.Background(), "/clients")
	require.NoError(t, err)
	assert.Equal(t, Forbidden, d.Outcome)
	assert.Equal(t, DefaultPath, d.Location)
	assert.Equal(t, 1, perms.loads, "permissions are loaded before deciding")
	assert.Equal(t, []string{"route_denied"}, rec.actions)
}

func TestAllowKeepsLocationAndParams(t *testing.T) {
	perms := &fakePerms{grants: map[string]bool{"quotes:read": true}}
	g := New(nil, fakeSessions{userID: "u1"}, fakeOrgs{id: "o1"}, perms, nil, nil, nil)
	d, err := g.Navigate(context.Background(), "/quotes/q9")
	require.NoError(t, err)
	assert.True(t, d.Allowed())
	assert.Equal(t, "/quotes/q9", d.Location)
	assert.Equal(t, "q9", d.Params["id"])
}

func TestUngatedRoutesSkipPermissionLoad(t *testing.T) {
	perms := &fakePerms{}
	g := New(nil, fakeSessions{userID: "u1"}, fakeOrgs{id: "o1"}, perms, nil, nil, nil)
	_, err := g.Navigate(context.Background(), "/dashboard")
	require.NoError(t, err)
	assert.Zero(t, perms.loads)
}

func TestPermissionLoadFailureDenies(t *testing.T) {
	perms := &fakePerms{loadErr: errors.New("store down")}
	g := New(nil, fakeSessions{userID: "u1"}, fakeOrgs{id: "o1"}, perms, nil, nil, nil)
	d, err := g.Navigate(context.Background(), "/quotes")
	require.NoError(t, err)
	assert.Equal(t, Forbidden, d.Outcome)
}

func TestNavigate_UnknownRoute(t *testing.T) {
	g := New(nil, fakeSessions{}, fakeOrgs{}, &fakePerms{}, nil, nil, nil)
	_, err := g.Navigate(context.Background(), "/admin")
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestRegoPolicy_FallsBackOnUnknownDecision(t *testing.T) {
	rp, err := NewRegoPolicy(context.Background(), "package greenline.routes\n\ndecision := \"maybe\"\n", nil)
	require.NoError(t, err)
	route, _, _ := NewTable(DefaultRoutes).Match("/dashboard")
	assert.Equal(t, SignInRequired, rp.Decide(context.Background(), Input{Route: route}))
}

func TestRegoPolicy_CustomModule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.rego")
	module := `package greenline.routes

default decision := "allow"

decision := "forbidden" if {
	input.route.name == "BillingSettings"
}
`
	require.NoError(t, os.WriteFile(path, []byte(module), 0o600))
	rp, err := LoadRegoPolicy(context.Background(), path, nil)
	require.NoError(t, err)

	perms := &fakePerms{grants: map[string]bool{"billing:manage": true}}
	g := New(nil, fakeSessions{userID: "u1"}, fakeOrgs{id: "o1"}, perms, rp, nil, nil)
	d, err := g.Navigate(context.Background(), "/settings/billing")
	require.NoError(t, err)
	assert.Equal(t, Forbidden, d.Outcome)
}

func TestLoadRegoPolicy_Errors(t *testing.T) {
	_, err := LoadRegoPolicy(context.Background(), filepath.Join(t.TempDir(), "missing.rego"), nil)
	assert.Error(t, err)
	_, err = NewRegoPolicy(context.Background(), "package greenline.routes\n\ndecision := \n", nil)
	assert.Error(t, err)
}
