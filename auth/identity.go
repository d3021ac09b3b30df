package auth

import (
	"slices"
	"time"
)

// Method names the credential that produced an Identity.
type Method string

const (
	MethodJWT       Method = "jwt"
	MethodAPIKey    Method = "api_key"
	MethodAnonymous Method = "anonymous"
)

// RoleAdmin may trigger install and activate through the admin routes.
const RoleAdmin = "admin"

// Identity is an authenticated caller.
type Identity struct {
	Principal string
	Roles     []string
	Method    Method

	// Claims holds token claims, or key metadata for API keys.
	Claims map[string]any

	ExpiresAt time.Time
}

// HasRole reports whether the identity carries role.
func (id *Identity) HasRole(role string) bool {
	return id != nil && slices.Contains(id.Roles, role)
}

// IsExpired reports whether ExpiresAt has passed. A zero ExpiresAt never
// expires.
func (id *Identity) IsExpired() bool {
	return !id.ExpiresAt.IsZero() && time.Now().After(id.ExpiresAt)
}

// IsAnonymous reports whether the identity names nobody.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.Method == MethodAnonymous || id.Principal == ""
}

// Anonymous returns the identity used when auth is disabled.
func Anonymous() *Identity {
	return &Identity{Principal: "anonymous", Method: MethodAnonymous, Claims: map[string]any{}}
}
