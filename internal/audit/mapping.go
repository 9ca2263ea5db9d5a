package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// Auth flow overrides: audited under purpose-specific actions rather than generic HTTP verbs.
const (
	routeRegister   = "POST /auth/register"
	routeLogin      = "POST /auth/login"
	routeLogout     = "POST /auth/logout"
	routeRefresh    = "POST /auth/refresh"
	routeToken      = "POST /oauth2/token"
	routeIntrospect = "POST /oauth2/introspect"
)

// ParseRoute returns action and resource for an HTTP method and route pattern
// (e.g. GET /api/v1/secure/data). Action is a verb derived from the method:
// get, create, update, delete. Resource is the last concrete path segment.
// The auth and oauth2 routes are mapped to domain actions (login, refresh, ...).
func ParseRoute(method, pattern string) ActionResource {
	switch method + " " + pattern {
	case routeRegister:
		return ActionResource{Action: "register", Resource: "account"}
	case routeLogin:
		return ActionResource{Action: "login", Resource: "session"}
	case routeLogout:
		return ActionResource{Action: "logout", Resource: "session"}
	case routeRefresh:
		return ActionResource{Action: "refresh", Resource: "token"}
	case routeToken:
		return ActionResource{Action: "issue", Resource: "token"}
	case routeIntrospect:
		return ActionResource{Action: "introspect", Resource: "token"}
	}
	return ActionResource{Action: methodToAction(method), Resource: patternToResource(pattern)}
}

func patternToResource(pattern string) string {
	segments := strings.Split(strings.Trim(pattern, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		s := segments[i]
		if s == "" || strings.HasPrefix(s, "{") {
			continue
		}
		return strings.ToLower(s)
	}
	return "unknown"
}

func methodToAction(method string) string {
	switch method {
	case http.MethodGet:
		return "get"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
