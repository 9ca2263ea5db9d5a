package engine

import "context"

// Evaluator decides whether a token's scopes satisfy a route requirement.
type Evaluator interface {
	// Allow reports whether a bearer holding scopes may access a route
	// requiring the given scope.
	Allow(ctx context.Context, scopes []string, required string) (bool, error)
}
