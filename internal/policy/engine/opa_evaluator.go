package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.authz.scopes.allow"

// Default Rego policy: a route is allowed when the token carries the
// required scope. Overrides loaded from disk or the database are compiled
// alongside it and may grant more broadly.
const defaultRegoPolicy = `package authz.scopes

default allow = false

allow if {
	some s in input.scopes
	s == input.required
}
`

// OPAEvaluator evaluates scope decisions using OPA Rego, compiled once at
// construction.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the default policy plus any override modules and
// prepares the allow query. A compile error in an override fails
// construction; callers fall back to NewOPAEvaluator(ctx) with no overrides.
func NewOPAEvaluator(ctx context.Context, overrides ...string) (*OPAEvaluator, error) {
	modules := map[string]string{"default.rego": defaultRegoPolicy}
	for i, src := range overrides {
		if src == "" {
			continue
		}
		modules[fmt.Sprintf("override_%d.rego", i)] = src
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile scope policies: %w", err)
	}
	query, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare scope query: %w", err)
	}
	return &OPAEvaluator{query: query}, nil
}

// Allow evaluates the compiled policy for the given scopes and requirement.
// An evaluation failure falls back to the built-in contains check and is
// logged, never surfaced as a denial of service on the route.
func (e *OPAEvaluator) Allow(ctx context.Context, scopes []string, required string) (bool, error) {
	input := map[string]interface{}{
		"scopes":   scopes,
		"required": required,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		log.Printf("policy: scope evaluation failed: %v, using built-in check", err)
		return containsScope(scopes, required), nil
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, nil
	}
	return allowed, nil
}

// HealthCheck verifies the prepared query evaluates. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"scopes":   []string{"read"},
		"required": "read",
	}))
	if err != nil {
		return fmt.Errorf("eval scope policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("scope policy query returned no result")
	}
	return nil
}

func containsScope(scopes []string, required string) bool {
	for _, s := range scopes {
		if s == required {
			return true
		}
	}
	return false
}
