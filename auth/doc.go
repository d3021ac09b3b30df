// Package auth guards the offline cache admin surface.
//
// Requests carry either a bearer JWT signed with a shared HMAC key or a
// static API key. A CompositeAuthenticator tries each in order and
// Middleware rejects unauthenticated requests with 401.
package auth
