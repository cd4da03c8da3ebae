package middleware

import "strings"

type PathClass int

const (
	PathUnknown PathClass = iota
	PathPublic
	PathPrivate
	PathAuthFlow
)

func (c PathClass) String() string {
	switch c {
	case PathPublic:
		return "public"
	case PathPrivate:
		return "private"
	case PathAuthFlow:
		return "auth-flow"
	}
	return "unknown"
}

// RouteTable lists path patterns per class. A pattern ending in "/*" matches the prefix
// itself and everything below it; any other pattern matches exactly. Excluded prefixes
// bypass the orchestrator entirely.
type RouteTable struct {
	AuthFlow []string
	Public   []string
	Private  []string
	Excluded []string
}

// DefaultRouteTable is the portal's route registry.
func DefaultRouteTable() RouteTable {
	return RouteTable{
		AuthFlow: []string{
			"/login",
			"/verify-email",
			"/resend-verification",
			"/forgot-password",
			"/reset-password",
		},
		Public: []string{
			"/",
			"/about",
			"/contact",
			"/register",
			"/center/*",
			"/api/public/*",
		},
		Private: []string{
			"/admin/*",
			"/dashboard/*",
			"/school/*",
			"/revoke-token",
			"/api/me",
			"/api/admin/*",
		},
		Excluded: []string{
			"/static/",
			"/assets/",
			"/favicon.ico",
			"/robots.txt",
			"/health",
			"/api/auth/",
		},
	}
}

// Classify checks the auth-flow, public and private tables in that order. Paths no table
// names are PathUnknown, which the orchestrator treats as private.
func (t RouteTable) Classify(path string) PathClass {
	path = normalizePath(path)
	switch {
	case matchesAny(t.AuthFlow, path):
		return PathAuthFlow
	case matchesAny(t.Public, path):
		return PathPublic
	case matchesAny(t.Private, path):
		return PathPrivate
	}
	return PathUnknown
}

// IsExcluded reports whether path skips the orchestrator. Entries ending in "/" cover
// that directory and everything under it; other entries match exactly.
func (t RouteTable) IsExcluded(path string) bool {
	path = normalizePath(path)
	for _, entry := range t.Excluded {
		if dir, ok := strings.CutSuffix(entry, "/"); ok {
			if path == dir || strings.HasPrefix(path, entry) {
				return true
			}
			continue
		}
		if path == normalizePath(entry) {
			return true
		}
	}
	return false
}

func matchesAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

func matchPattern(pattern string, path string) bool {
	if base, ok := strings.CutSuffix(pattern, "/*"); ok {
		return path == base || strings.HasPrefix(path, base+"/")
	}
	return path == normalizePath(pattern)
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}
