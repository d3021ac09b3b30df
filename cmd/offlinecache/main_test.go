package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonwraymond/offlinecache/cachestore"
	"github.com/jonwraymond/offlinecache/config"
	"github.com/jonwraymond/offlinecache/worker"
)

func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.html" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "body of %s", r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeConfig writes a disk-backed configuration and points the global
// --config flag at it.
func writeConfig(t *testing.T, origin, version string, manifest ...string) string {
	t.Helper()
	dir := t.TempDir()
	var b strings.Builder
	fmt.Fprintf(&b, "prefix: FoodFest-\nversion: %s\norigin: %s\n", version, origin)
	b.WriteString("manifest:\n")
	for _, m := range manifest {
		fmt.Fprintf(&b, "  - %s\n", m)
	}
	fmt.Fprintf(&b, "store:\n  kind: disk\n  path: %s\n", filepath.Join(dir, "store"))
	b.WriteString("observe:\n  logging:\n    enabled: false\n")

	path := filepath.Join(dir, "offlinecache.yaml")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}
	old := globals.ConfigPath
	globals.ConfigPath = path
	t.Cleanup(func() { globals.ConfigPath = old })
	return path
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{"memory", config.StoreConfig{Kind: config.StoreMemory}},
		{"disk", config.StoreConfig{Kind: config.StoreDisk, Path: filepath.Join(dir, "disk")}},
		{"sqlite", config.StoreConfig{Kind: config.StoreSQLite, Path: filepath.Join(dir, "cache.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, closeFn, err := openStorage(ctx, tt.cfg)
			if err != nil {
				t.Fatalf("openStorage() error = %v", err)
			}
			defer func() {
				if err := closeFn(ctx); err != nil {
					t.Errorf("close error = %v", err)
				}
			}()
			if _, err := s.Open(ctx, "FoodFest-version_01"); err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			keys, err := s.Keys(ctx)
			if err != nil || len(keys) != 1 {
				t.Errorf("Keys() = %v, %v; want one cache", keys, err)
			}
		})
	}
}

func TestOpenStorage_UnknownKind(t *testing.T) {
	_, _, err := openStorage(context.Background(), config.StoreConfig{Kind: "tape"})
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("error = %v, want ErrInvalid", err)
	}
}

func TestAuthenticator(t *testing.T) {
	a, err := authenticator(config.AuthConfig{Enabled: false, JWTKey: "ignored"})
	if err != nil || a != nil {
		t.Errorf("disabled: got %v, %v; want nil, nil", a, err)
	}

	a, err = authenticator(config.AuthConfig{
		Enabled: true,
		JWTKey:  "0123456789abcdef0123456789abcdef",
		APIKeys: []config.APIKeyConfig{{ID: "ops", Key: "s3cret", Principal: "ops", Roles: []string{"admin"}}},
	})
	if err != nil {
		t.Fatalf("authenticator() error = %v", err)
	}
	if a == nil {
		t.Fatal("authenticator() = nil, want composite")
	}
}

func TestInstallThenCaches(t *testing.T) {
	origin := newOrigin(t)
	writeConfig(t, origin.URL, "version_01", "./index.html", "./assets/css/style.css")
	ctx := context.Background()

	var out bytes.Buffer
	if err := runInstall(ctx, &out); err != nil {
		t.Fatalf("runInstall() error = %v", err)
	}
	if got := out.String(); got != "installed FoodFest-version_01 (2 assets)\n" {
		t.Errorf("install output = %q", got)
	}

	out.Reset()
	if err := runCaches(ctx, &out); err != nil {
		t.Fatalf("runCaches() error = %v", err)
	}
	if !strings.Contains(out.String(), "FoodFest-version_01") || !strings.Contains(out.String(), "*") {
		t.Errorf("caches output = %q", out.String())
	}
}

func TestInstall_Failure(t *testing.T) {
	origin := newOrigin(t)
	writeConfig(t, origin.URL, "version_01", "./index.html", "./missing.html")

	var out bytes.Buffer
	err := runInstall(context.Background(), &out)
	if !errors.Is(err, cachestore.ErrBadResponse) {
		t.Fatalf("runInstall() error = %v, want ErrBadResponse", err)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want none", out.String())
	}
}

func TestActivate(t *testing.T) {
	origin := newOrigin(t)
	path := writeConfig(t, origin.URL, "version_01", "./index.html")
	ctx := context.Background()

	if err := runInstall(ctx, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}

	// Same store, next version.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data = bytes.Replace(data, []byte("version_01"), []byte("version_02"), 1)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := runInstall(ctx, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runActivate(ctx, &out); err != nil {
		t.Fatalf("runActivate() error = %v", err)
	}
	if got := out.String(); got != "deleted FoodFest-version_01\n" {
		t.Errorf("activate output = %q", got)
	}

	out.Reset()
	if err := runActivate(ctx, &out); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "no stale caches\n" {
		t.Errorf("second activate output = %q", got)
	}
}

func TestOneShotCommandsRejectMemoryStore(t *testing.T) {
	origin := newOrigin(t)
	path := writeConfig(t, origin.URL, "version_01", "./index.html")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data = bytes.Replace(data, []byte("kind: disk"), []byte("kind: memory"), 1)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	runs := map[string]func(context.Context, io.Writer) error{
		"install":  runInstall,
		"activate": runActivate,
		"caches":   runCaches,
	}
	for name, run := range runs {
		var out bytes.Buffer
		if err := run(ctx, &out); !errors.Is(err, errEphemeralStore) {
			t.Errorf("%s error = %v, want errEphemeralStore", name, err)
		}
		if out.Len() != 0 {
			t.Errorf("%s output = %q, want none", name, out.String())
		}
	}
}

func TestPrintCaches(t *testing.T) {
	cfg := worker.Config{Prefix: "FoodFest-", Version: "version_02"}
	stats := []cachestore.CacheStats{
		{Name: "FoodFest-version_01", Entries: 3, Bytes: 2048},
		{Name: "FoodFest-version_02", Entries: 3, Bytes: 2048},
		{Name: "Other-v1", Entries: 1, Bytes: 10},
	}
	var out bytes.Buffer
	if err := printCaches(&out, cfg, stats); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), out.String())
	}
	if !strings.HasSuffix(lines[1], "stale") {
		t.Errorf("line 1 = %q, want stale", lines[1])
	}
	if !strings.HasSuffix(lines[2], "*") {
		t.Errorf("line 2 = %q, want current marker", lines[2])
	}
	if !strings.Contains(lines[3], "10 B") || strings.HasSuffix(lines[3], "stale") {
		t.Errorf("line 3 = %q", lines[3])
	}
}
