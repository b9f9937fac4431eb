package guard

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"greenline/backend/internal/permission"
)

// Outcome is a policy verdict.
type Outcome string

const (
	Allow Outcome = "allow"
	// SignInRequired redirects to the sign-in page.
	SignInRequired Outcome = "sign_in"
	// AlreadyAuthenticated redirects a signed-in user away from the auth pages.
	AlreadyAuthenticated Outcome = "authenticated"
	// Forbidden redirects a signed-in user lacking every required permission.
	Forbidden Outcome = "forbidden"
)

// Input is what a policy decides over. Held lists the route's permissions the user holds.
type Input struct {
	Route         Route
	Authenticated bool
	Held          []permission.Requirement
}

// Policy turns an Input into an Outcome.
type Policy interface {
	Decide(ctx context.Context, in Input) Outcome
}

// TablePolicy is the built-in decision table.
type TablePolicy struct{}

// Decide implements Policy.
func (TablePolicy) Decide(_ context.Context, in Input) Outcome {
	switch {
	case in.Route.RequiresAuth && !in.Authenticated:
		return SignInRequired
	case in.Route.AuthPage && in.Authenticated:
		return AlreadyAuthenticated
	case in.Route.RequiresAuth && len(in.Route.Permissions) > 0 && len(in.Held) == 0:
		return Forbidden
	default:
		return Allow
	}
}

const regoQuery = "data.greenline.routes.decision"

// DefaultRegoModule encodes the decision table in Rego.
//
//go:embed policies/routes.rego
var DefaultRegoModule string

// RegoPolicy evaluates a Rego module defining data.greenline.routes.decision. Evaluation failures
// and unknown verdicts fall back to TablePolicy.
type RegoPolicy struct {
	query    rego.PreparedEvalQuery
	fallback TablePolicy
	log      *zap.Logger
}

// NewRegoPolicy compiles module. logger may be nil.
func NewRegoPolicy(ctx context.Context, module string, logger *zap.Logger) (*RegoPolicy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	compiler, err := ast.CompileModules(map[string]string{"routes.rego": module})
	if err != nil {
		return nil, fmt.Errorf("compile route policy: %w", err)
	}
	q, err := rego.New(rego.Query(regoQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare route policy: %w", err)
	}
	return &RegoPolicy{query: q, log: logger}, nil
}

// LoadRegoPolicy compiles the module at path, or DefaultRegoModule when path is empty.
func LoadRegoPolicy(ctx context.Context, path string, logger *zap.Logger) (*RegoPolicy, error) {
	module := DefaultRegoModule
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read route policy: %w", err)
		}
		module = string(b)
	}
	return NewRegoPolicy(ctx, module, logger)
}

// Decide implements Policy.
func (p *RegoPolicy) Decide(ctx context.Context, in Input) Outcome {
	rs, err := p.query.Eval(ctx, rego.EvalInput(regoInput(in)))
	if err != nil {
		p.log.Warn("guard: route policy evaluation failed; using decision table", zap.String("route", in.Route.Name), zap.Error(err))
		return p.fallback.Decide(ctx, in)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		p.log.Warn("guard: route policy returned no decision; using decision table", zap.String("route", in.Route.Name))
		return p.fallback.Decide(ctx, in)
	}
	v, _ := rs[0].Expressions[0].Value.(string)
	switch o := Outcome(v); o {
	case Allow, SignInRequired, AlreadyAuthenticated, Forbidden:
		return o
	default:
		p.log.Warn("guard: route policy returned unknown decision; using decision table",
			zap.String("route", in.Route.Name), zap.Any("decision", rs[0].Expressions[0].Value))
		return p.fallback.Decide(ctx, in)
	}
}

func regoInput(in Input) map[string]interface{} {
	required := make([]interface{}, len(in.Route.Permissions))
	for i, r := range in.Route.Permissions {
		required[i] = r.String()
	}
	held := make([]interface{}, len(in.Held))
	for i, r := range in.Held {
		held[i] = r.String()
	}
	return map[string]interface{}{
		"route": map[string]interface{}{
			"name":          in.Route.Name,
			"path":          in.Route.Path,
			"requires_auth": in.Route.RequiresAuth,
			"auth_page":     in.Route.AuthPage,
			"permissions":   required,
		},
		"authenticated": in.Authenticated,
		"held":          held,
	}
}
