package auth

import (
	"slices"
	"strings"
)

const (
	// RoleAdmin may call every endpoint.
	RoleAdmin = "admin"
	// RoleViewer may read request status and dashboard data.
	RoleViewer = "viewer"
	// RoleSubmitter may submit links and read their status, e.g. a chat bot frontend.
	RoleSubmitter = "submitter"
)

// Permission lists the methods and paths a role may use. A path ending in
// "/*" matches the prefix and everything below it.
type Permission struct {
	AllowedMethods []string
	AllowedPaths   []string
}

var RolePermissions = map[string]Permission{
	RoleAdmin: {
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedPaths:   []string{"/*"},
	},
	RoleViewer: {
		AllowedMethods: []string{"GET"},
		AllowedPaths: []string{
			"/v1/requests/*",
			"/v1/admin/stats",
			"/v1/admin/failures",
		},
	},
	RoleSubmitter: {
		AllowedMethods: []string{"GET", "POST"},
		AllowedPaths: []string{
			"/v1/requests",
			"/v1/requests/*",
		},
	},
}

// publicPaths skip JWT validation. The Meta webhook authenticates with its
// HMAC signature instead.
var publicPaths = map[string]bool{
	"/health":        true,
	"/ready":         true,
	"/live":          true,
	"/metrics":       true,
	"/webhooks/meta": true,
}

// IsPublicEndpoint matches exact paths only, so "/health/x" still needs a token.
func IsPublicEndpoint(path string) bool {
	return publicPaths[path]
}

// ValidRole reports whether role has an entry in RolePermissions.
func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

func checkRolePermission(role, method, path string) bool {
	perm, exists := RolePermissions[role]
	if !exists {
		return false
	}
	if !slices.Contains(perm.AllowedMethods, method) {
		return false
	}
	return matchesPathPattern(path, perm.AllowedPaths)
}

func matchesPathPattern(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == "/*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == pattern {
			return true
		}
	}
	return false
}
