package auth

import (
	"errors"
	"net/http"

	"github.com/jonwraymond/offlinecache/observe"
)

// Middleware authenticates every request with authn and stores the
// identity in the request context. Failures answer 401 with a
// WWW-Authenticate challenge; internal errors answer 500. A nil authn
// admits every request as Anonymous.
func Middleware(authn Authenticator, logger observe.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if authn == nil {
				next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, Anonymous())))
				return
			}

			req := NewRequest(r)
			result, err := authn.Authenticate(ctx, req)
			if err != nil {
				logger.Error(ctx, "authentication error",
					observe.Field{Key: "path", Value: req.Path},
					observe.Field{Key: "error", Value: err.Error()})
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !result.Authenticated {
				reason := ErrInvalidCredentials
				if result.Error != nil {
					reason = result.Error
				}
				logger.Warn(ctx, "request rejected",
					observe.Field{Key: "path", Value: req.Path},
					observe.Field{Key: "method", Value: string(result.Method)},
					observe.Field{Key: "error", Value: reason.Error()})
				w.Header().Set("WWW-Authenticate", `Bearer realm="offlinecache"`)
				http.Error(w, reason.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, result.Identity)))
		})
	}
}

// RequireRole answers 403 unless the context identity holds role.
// Anonymous identities from a nil authenticator always pass.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if err := authorize(id, role); err != nil {
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authorize(id *Identity, role string) error {
	switch {
	case id == nil:
		return ErrForbidden
	case id.Method == MethodAnonymous:
		return nil
	case id.IsExpired():
		return errors.Join(ErrForbidden, ErrTokenExpired)
	case !id.HasRole(role):
		return ErrForbidden
	}
	return nil
}
