package guard

import (
	"strings"

	"greenline/backend/internal/permission"
	roledomain "greenline/backend/internal/role/domain"
)

// Route names of the navigation surface.
const (
	RouteHome                 = "Home"
	RouteLogin                = "Login"
	RouteSignup               = "Signup"
	RouteDashboard            = "Dashboard"
	RoutePlantCompendium      = "PlantCompendium"
	RouteQuoteEstimator       = "QuoteEstimator"
	RouteQuoteDetail          = "QuoteDetail"
	RouteMaterialCalculator   = "MaterialCalculator"
	RouteClientManagement     = "ClientManagement"
	RouteSOPLibrary           = "SOPLibrary"
	RouteSettings             = "Settings"
	RouteOrganizationSettings = "OrganizationSettings"
	RouteBillingSettings      = "BillingSettings"
)

// Route describes one navigation target. Permissions are alternatives: holding any one is enough.
type Route struct {
	Name         string
	Path         string
	RequiresAuth bool
	// AuthPage marks the sign-in and sign-up pages, which signed-in users are sent away from.
	AuthPage     bool
	Permissions  []permission.Requirement
}

func perms(pairs ...[2]string) []permission.Requirement {
	out := make([]permission.Requirement, len(pairs))
	for i, p := range pairs {
		out[i] = permission.Require(p[0], p[1])
	}
	return out
}

// DefaultRoutes is the application's route table.
var DefaultRoutes = []Route{
	{Name: RouteHome, Path: "/"},
	{Name: RouteLogin, Path: "/login", AuthPage: true},
	{Name: RouteSignup, Path: "/signup", AuthPage: true},
	{Name: RouteDashboard, Path: "/dashboard", RequiresAuth: true},
	{Name: RoutePlantCompendium, Path: "/plants", RequiresAuth: true},
	{Name: RouteQuoteEstimator, Path: "/quotes", RequiresAuth: true,
		Permissions: perms([2]string{roledomain.ResourceQuotes, roledomain.ActionRead})},
	{Name: RouteQuoteDetail, Path: "/quotes/:id", RequiresAuth: true,
		Permissions: perms([2]string{roledomain.ResourceQuotes, roledomain.ActionRead})},
	{Name: RouteMaterialCalculator, Path: "/calculator", RequiresAuth: true},
	{Name: RouteClientManagement, Path: "/clients", RequiresAuth: true,
		Permissions: perms([2]string{roledomain.ResourceClients, roledomain.ActionRead})},
	{Name: RouteSOPLibrary, Path: "/sop-library", RequiresAuth: true,
		Permissions: perms([2]string{roledomain.ResourceDocuments, roledomain.ActionRead})},
	{Name: RouteSettings, Path: "/settings", RequiresAuth: true},
	{Name: RouteOrganizationSettings, Path: "/settings/organization", RequiresAuth: true,
		Permissions: perms(
			[2]string{roledomain.ResourceOrganization, roledomain.ActionUpdate},
			[2]string{roledomain.ResourceOrganization, roledomain.ActionManage},
		)},
	{Name: RouteBillingSettings, Path: "/settings/billing", RequiresAuth: true,
		Permissions: perms([2]string{roledomain.ResourceBilling, roledomain.ActionManage})},
}

// Table matches paths against routes in declaration order.
type Table struct {
	routes []Route
	byName map[string]Route
}

// NewTable returns a Table over routes.
func NewTable(routes []Route) *Table {
	t := &Table{routes: routes, byName: make(map[string]Route, len(routes))}
	for _, r := range routes {
		t.byName[r.Name] = r
	}
	return t
}

// Routes returns the routes in declaration order.
func (t *Table) Routes() []Route {
	return t.routes
}

// ByName returns the route called name.
func (t *Table) ByName(name string) (Route, bool) {
	r, ok := t.byName[name]
	return r, ok
}

// Match returns the first route whose pattern matches fullPath and the values of its :param
// segments. Query strings, fragments and trailing slashes are ignored.
func (t *Table) Match(fullPath string) (Route, map[string]string, bool) {
	segs := split(cleanPath(fullPath))
	for _, r := range t.routes {
		if params, ok := matchSegments(split(r.Path), segs); ok {
			return r, params, true
		}
	}
	return Route{}, nil, false
}

func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

func split(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, segs []string) (map[string]string, bool) {
	if len(pattern) != len(segs) {
		return nil, false
	}
	var params map[string]string
	for i, p := range pattern {
		if name, ok := strings.CutPrefix(p, ":"); ok {
			if segs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = segs[i]
			continue
		}
		if p != segs[i] {
			return nil, false
		}
	}
	return params, true
}
