// Package guard decides whether a navigation may proceed, based on the route's requirements, the
// authentication state and the permission cache.
package guard

import (
	"context"
	"errors"
	"net/url"

	"go.uber.org/zap"

	"greenline/backend/internal/audit"
	"greenline/backend/internal/permission"
)

// ErrRouteNotFound is returned by Navigate for paths outside the route table.
var ErrRouteNotFound = errors.New("guard: route not found")

// Paths redirected to.
const (
	SignInPath  = "/login"
	DefaultPath = "/dashboard"
	// RedirectParam carries the originally requested path on sign-in redirects.
	RedirectParam = "redirect"
)

// Decision is the result of a check. Location is where navigation ends up: the requested path
// when allowed, otherwise the redirect target.
type Decision struct {
	Outcome  Outcome
	Route    Route
	Params   map[string]string
	Location string
}

// Allowed reports whether navigation proceeds to the requested route.
func (d Decision) Allowed() bool { return d.Outcome == Allow }

// Sessions reports the authentication state.
type Sessions interface {
	IsAuthenticated() bool
	CurrentUserID() string
}

// Permissions is the permission cache.
type Permissions interface {
	Load(ctx context.Context) error
	Can(resource, action string) bool
}

// Organizations reports the current organization.
type Organizations interface {
	CurrentOrganizationID() string
}

// Guard is the route guard.
type Guard struct {
	table    *Table
	sessions Sessions
	orgs     Organizations
	perms    Permissions
	policy   Policy
	audit    audit.AuditLogger
	log      *zap.Logger
}

// New returns a Guard. A nil table uses DefaultRoutes, a nil policy the built-in decision table.
// auditLogger and logger may be nil.
func New(table *Table, sessions Sessions, orgs Organizations, perms Permissions, policy Policy, auditLogger audit.AuditLogger, logger *zap.Logger) *Guard {
	if table == nil {
		table = NewTable(DefaultRoutes)
	}
	if policy == nil {
		policy = TablePolicy{}
	}
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{table: table, sessions: sessions, orgs: orgs, perms: perms, policy: policy, audit: auditLogger, log: logger}
}

// Table returns the guard's route table.
func (g *Guard) Table() *Table { return g.table }

// Navigate matches fullPath and checks it.
func (g *Guard) Navigate(ctx context.Context, fullPath string) (Decision, error) {
	route, params, ok := g.table.Match(fullPath)
	if !ok {
		return Decision{}, ErrRouteNotFound
	}
	d := g.Check(ctx, route, fullPath)
	d.Params = params
	return d, nil
}

// Check decides navigation to route, requested as fullPath. For permission-gated routes the
// permission cache is loaded for the current organization before deciding.
func (g *Guard) Check(ctx context.Context, route Route, fullPath string) Decision {
	in := Input{Route: route, Authenticated: g.sessions.IsAuthenticated()}
	if in.Authenticated && route.RequiresAuth && len(route.Permissions) > 0 {
		if err := g.perms.Load(ctx); err != nil {
			g.log.Warn("guard: permission load failed", zap.String("route", route.Name), zap.Error(err))
		}
		in.Held = g.held(route.Permissions)
	}

	d := Decision{Outcome: g.policy.Decide(ctx, in), Route: route}
	switch d.Outcome {
	case SignInRequired:
		d.Location = SignInPath + "?" + url.Values{RedirectParam: {fullPath}}.Encode()
	case AlreadyAuthenticated:
		d.Location = DefaultPath
	case Forbidden:
		d.Location = DefaultPath
		g.audit.LogEvent(ctx, g.orgs.CurrentOrganizationID(), g.sessions.CurrentUserID(), audit.ActionRouteDenied, "route",
			map[string]string{"route": route.Name, "path": fullPath})
	default:
		d.Location = fullPath
	}
	return d
}

func (g *Guard) held(reqs []permission.Requirement) []permission.Requirement {
	var out []permission.Requirement
	for _, r := range reqs {
		if g.perms.Can(r.Resource, r.Action) {
			out = append(out, r)
		}
	}
	return out
}
