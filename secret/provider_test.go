package secret

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvProvider(t *testing.T) {
	t.Setenv("OFFLINE_SET", "v")
	ctx := context.Background()

	if got, err := (EnvProvider{}).Resolve(ctx, "OFFLINE_SET"); err != nil || got != "v" {
		t.Errorf("Resolve(set) = (%q, %v)", got, err)
	}
	if _, err := (EnvProvider{}).Resolve(ctx, "OFFLINE_UNSET_VAR"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(unset) error = %v, want ErrNotFound", err)
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "key"), []byte("abc\r\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	tests := []struct {
		name    string
		p       FileProvider
		ref     string
		want    string
		wantErr error
	}{
		{"absolute without dir", FileProvider{}, filepath.Join(dir, "key"), "abc", nil},
		{"relative under dir", FileProvider{Dir: dir}, "key", "abc", nil},
		{"absolute under dir", FileProvider{Dir: dir}, filepath.Join(dir, "key"), "abc", nil},
		{"escape", FileProvider{Dir: dir}, "../etc/passwd", "", ErrInvalidRef},
		{"missing", FileProvider{Dir: dir}, "nope", "", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.p.Resolve(ctx, tt.ref)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	if got := reg.List(); len(got) != 2 || got[0] != "env" || got[1] != "file" {
		t.Errorf("List() = %v, want [env file]", got)
	}
	if err := reg.Register("env", func(map[string]any) (Provider, error) { return EnvProvider{}, nil }); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate Register error = %v", err)
	}
	if err := reg.Register(" ", nil); err == nil {
		t.Error("blank registration should fail")
	}
	if _, err := reg.Create("vault", nil); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Create(unknown) error = %v", err)
	}
	p, err := reg.Create("file", map[string]any{"dir": "/run/secrets"})
	if err != nil || p.(FileProvider).Dir != "/run/secrets" {
		t.Errorf("Create(file) = (%v, %v)", p, err)
	}
}
