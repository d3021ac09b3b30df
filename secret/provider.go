package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// EnvProvider resolves a reference as an environment variable name.
type EnvProvider struct{}

// Name returns "env".
func (EnvProvider) Name() string { return "env" }

// Resolve returns the variable's value, or ErrNotFound when it is unset.
func (EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrNotFound, ref)
	}
	return v, nil
}

// Close is a no-op.
func (EnvProvider) Close() error { return nil }

// FileProvider resolves a reference as a file path, the way container
// runtimes mount secrets. Trailing newlines are trimmed.
type FileProvider struct {
	// Dir, when set, is the only directory references may name; relative
	// references resolve beneath it.
	Dir string
}

// Name returns "file".
func (p FileProvider) Name() string { return "file" }

// Resolve reads the referenced file.
func (p FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	path, err := p.path(ref)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: file %s", ErrNotFound, ref)
	}
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", ref, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (p FileProvider) path(ref string) (string, error) {
	if p.Dir == "" {
		return filepath.Clean(ref), nil
	}
	rel := ref
	if filepath.IsAbs(ref) {
		r, err := filepath.Rel(p.Dir, ref)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrInvalidRef, ref)
		}
		rel = r
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s escapes %s", ErrInvalidRef, ref, p.Dir)
	}
	return filepath.Join(p.Dir, rel), nil
}

// Close is a no-op.
func (FileProvider) Close() error { return nil }

var (
	_ Provider = EnvProvider{}
	_ Provider = FileProvider{}
)
