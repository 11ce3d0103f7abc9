// Package pathutil maps request paths onto route templates so that metric
// labels and span names stay bounded.
package pathutil

import "strings"

// routes lists every path with an id segment. A ":name" segment matches
// any single non-empty segment.
var routes = [][]string{
	split("/v1/requests/:id"),
	split("/v1/admin/bans/:userId"),
	split("/v1/admin/outbound-posts/:id/dead"),
}

func split(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

// NormalizePath converts paths with ids to their route template.
// Query strings and a trailing slash are ignored; static paths pass through.
//
//	NormalizePath("/v1/requests/6f1d...")   // "/v1/requests/:id"
//	NormalizePath("/v1/admin/bans/42/")     // "/v1/admin/bans/:userId"
//	NormalizePath("/health?verbose=1")      // "/health"
func NormalizePath(path string) string {
	path, _, _ = strings.Cut(path, "?")
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	segs := split(path)
	for _, route := range routes {
		if matches(route, segs) {
			return "/" + strings.Join(route, "/")
		}
	}
	return path
}

// IsTemplated reports whether route came from the template table rather
// than passing through unchanged.
func IsTemplated(route string) bool {
	return strings.Contains(route, "/:")
}

func matches(route, segs []string) bool {
	if len(route) != len(segs) {
		return false
	}
	for i, want := range route {
		if strings.HasPrefix(want, ":") {
			if segs[i] == "" {
				return false
			}
			continue
		}
		if segs[i] != want {
			return false
		}
	}
	return true
}
