package auth

import "context"

// CompositeAuthenticator tries authenticators in order and returns the
// first success, or the last failure when none succeed.
type CompositeAuthenticator struct {
	Authenticators []Authenticator
}

// NewCompositeAuthenticator creates a composite authenticator. Nil entries
// are dropped.
func NewCompositeAuthenticator(auths ...Authenticator) *CompositeAuthenticator {
	c := &CompositeAuthenticator{}
	for _, a := range auths {
		if a != nil {
			c.Authenticators = append(c.Authenticators, a)
		}
	}
	return c
}

// Name returns "composite".
func (c *CompositeAuthenticator) Name() string {
	return "composite"
}

// Supports reports whether any authenticator supports the request.
func (c *CompositeAuthenticator) Supports(ctx context.Context, req *Request) bool {
	for _, a := range c.Authenticators {
		if a.Supports(ctx, req) {
			return true
		}
	}
	return false
}

// Authenticate tries each supporting authenticator in order. Internal
// errors stop the walk immediately.
func (c *CompositeAuthenticator) Authenticate(ctx context.Context, req *Request) (*Result, error) {
	var last *Result
	for _, a := range c.Authenticators {
		if !a.Supports(ctx, req) {
			continue
		}
		result, err := a.Authenticate(ctx, req)
		if err != nil {
			return nil, err
		}
		if result.Authenticated {
			return result, nil
		}
		last = result
	}
	if last != nil {
		return last, nil
	}
	return Failure(ErrMissingCredentials, ""), nil
}

// Ensure CompositeAuthenticator implements Authenticator
var _ Authenticator = (*CompositeAuthenticator)(nil)
