package secret

import "errors"

var (
	ErrMissingEnv      = errors.New("secret: missing environment variable")
	ErrUnknownProvider = errors.New("secret: provider not registered")
	ErrInvalidRef      = errors.New("secret: invalid reference")
	ErrNotFound        = errors.New("secret: not found")
	ErrEmpty           = errors.New("secret: empty value")
	ErrDuplicate       = errors.New("secret: provider already registered")
)
