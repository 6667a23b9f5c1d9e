package audit

import (
	"net/http"
	"strings"

	"gymmaster/internal/model"
)

const apiPrefix = "/api/v1"

// Route is declared next to a route registration and names what the route mutates.
// Action overrides the method-derived action for LOGIN, CHECK_IN and friends.
type Route struct {
	Entity string
	Action model.AuditAction
}

var excludedPaths = []string{
	"/health",
	"/docs",
	"/auth/refresh",
	"/internal/metrics",
}

// ActionFor resolves the action for method, honouring the route override.
// ok is false for non-mutating methods.
func (r Route) ActionFor(method string) (model.AuditAction, bool) {
	var derived model.AuditAction
	switch strings.ToUpper(method) {
	case http.MethodPost:
		derived = model.AuditActionCreate
	case http.MethodPut, http.MethodPatch:
		derived = model.AuditActionUpdate
	case http.MethodDelete:
		derived = model.AuditActionDelete
	default:
		return "", false
	}
	if r.Action != "" {
		return r.Action, true
	}
	return derived, true
}

// Excluded reports whether path is on the never-audit list, with or without the API prefix.
func Excluded(path string) bool {
	p := strings.TrimPrefix(path, apiPrefix)
	for _, excluded := range excludedPaths {
		if p == excluded || strings.HasPrefix(p, excluded+"/") {
			return true
		}
	}
	return false
}

// ShouldRecord applies the method, status and exclusion rules.
func ShouldRecord(method, path string, status int) bool {
	if status < 200 || status >= 300 {
		return false
	}
	if _, ok := (Route{}).ActionFor(method); !ok {
		return false
	}
	return !Excluded(path)
}
