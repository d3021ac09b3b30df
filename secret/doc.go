// Package secret resolves credentials referenced from configuration.
//
// A value is first expanded with ExpandEnvStrict, then any
// "secretref:<provider>:<ref>" reference in it is replaced by what the
// named Provider returns:
//
//	auth.jwt.key: secretref:file:/run/secrets/offline-jwt
//	auth.api_keys[0].key: secretref:env:OFFLINE_CI_KEY
//	origin: https://${ORIGIN_HOST}/site
//
// The built-in providers are "env" and "file".
package secret
