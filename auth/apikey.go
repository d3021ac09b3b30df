package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// APIKey is a static key granted to one principal.
type APIKey struct {
	ID        string
	Key       string
	Principal string
	Roles     []string
}

// APIKeyAuthenticator matches the X-API-Key header against configured keys.
// Keys are held as SHA-256 digests and compared in constant time.
type APIKeyAuthenticator struct {
	header string
	keys   []hashedKey
}

type hashedKey struct {
	digest [sha256.Size]byte
	info   APIKey
}

// NewAPIKeyAuthenticator creates an authenticator for keys. Keys with an
// empty Key are ignored. header defaults to "X-API-Key".
func NewAPIKeyAuthenticator(header string, keys ...APIKey) *APIKeyAuthenticator {
	if header == "" {
		header = "X-API-Key"
	}
	a := &APIKeyAuthenticator{header: header}
	for _, k := range keys {
		if strings.TrimSpace(k.Key) == "" {
			continue
		}
		info := k
		info.Key = ""
		a.keys = append(a.keys, hashedKey{digest: sha256.Sum256([]byte(k.Key)), info: info})
	}
	return a
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string {
	return "api_key"
}

// Supports reports whether the key header is present.
func (a *APIKeyAuthenticator) Supports(_ context.Context, req *Request) bool {
	return req.Get(a.header) != ""
}

// Authenticate looks the presented key up. Every configured key is
// compared so timing does not reveal which one matched.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, req *Request) (*Result, error) {
	presented := strings.TrimSpace(req.Get(a.header))
	if presented == "" {
		return Failure(ErrMissingCredentials, MethodAPIKey), nil
	}
	digest := sha256.Sum256([]byte(presented))

	var match *APIKey
	for i := range a.keys {
		if subtle.ConstantTimeCompare(digest[:], a.keys[i].digest[:]) == 1 {
			match = &a.keys[i].info
		}
	}
	if match == nil {
		return Failure(ErrInvalidCredentials, MethodAPIKey), nil
	}

	return Success(&Identity{
		Principal: match.Principal,
		Roles:     append([]string(nil), match.Roles...),
		Method:    MethodAPIKey,
		Claims:    map[string]any{"key_id": match.ID},
	}), nil
}

// HashAPIKey returns the hex SHA-256 digest of key, for logging a key
// without revealing it.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Ensure APIKeyAuthenticator implements Authenticator
var _ Authenticator = (*APIKeyAuthenticator)(nil)
