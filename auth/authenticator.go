package auth

import (
	"context"
	"net/http"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines.
// - Errors: Authenticate returns (nil, error) for internal errors and
//   (Result, nil) for credential failures (check Result.Authenticated).
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports reports whether the request carries this kind of credential.
	Supports(ctx context.Context, req *Request) bool

	// Authenticate validates the credential.
	Authenticate(ctx context.Context, req *Request) (*Result, error)
}

// Request is the credential-bearing part of an HTTP request.
type Request struct {
	Header http.Header

	// Path is the requested path, kept for logging.
	Path string
}

// NewRequest extracts a Request from r.
func NewRequest(r *http.Request) *Request {
	return &Request{Header: r.Header, Path: r.URL.Path}
}

// Get returns the first value of the named header.
func (r *Request) Get(key string) string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get(key)
}

// Result is the outcome of an authentication attempt.
type Result struct {
	Authenticated bool
	Identity      *Identity
	Error         error
	Method        Method
}

// Success creates a successful result for identity.
func Success(identity *Identity) *Result {
	return &Result{Authenticated: true, Identity: identity, Method: identity.Method}
}

// Failure creates a failed result.
func Failure(err error, method Method) *Result {
	return &Result{Error: err, Method: method}
}
