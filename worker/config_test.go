package worker

import (
	"errors"
	"reflect"
	"testing"

	"github.com/jonwraymond/offlinecache/cachestore"
)

func TestConfig_CacheName(t *testing.T) {
	cfg := Config{Prefix: "FoodFest-", Version: "version_01"}
	if got := cfg.CacheName(); got != "FoodFest-version_01" {
		t.Errorf("CacheName() = %q, want FoodFest-version_01", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "valid", cfg: Config{Prefix: "FoodFest-", Version: "version_01", Manifest: []string{"./index.html"}}},
		{name: "empty manifest", cfg: Config{Prefix: "FoodFest-", Version: "version_01"}},
		{name: "missing prefix", cfg: Config{Version: "version_01"}, wantErr: ErrInvalidConfig},
		{name: "blank version", cfg: Config{Prefix: "FoodFest-", Version: "  "}, wantErr: ErrInvalidConfig},
		{name: "control char in name", cfg: Config{Prefix: "FoodFest-", Version: "v\x00"}, wantErr: cachestore.ErrInvalidName},
		{name: "invalid manifest url", cfg: Config{Prefix: "p-", Version: "1", Manifest: []string{" "}}, wantErr: cachestore.ErrInvalidKey},
		{
			name:    "duplicate after canonicalization",
			cfg:     Config{Prefix: "p-", Version: "1", Manifest: []string{"./index.html", "/index.html"}},
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, should wrap ErrInvalidConfig", err)
			}
		})
	}
}

// The prefix check is a boolean predicate on the start of the name. A
// position of zero must count as a match and a prefix that appears later
// in the name must not.
func TestBelongsToApp(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   bool
	}{
		{"FoodFest-version_00", "FoodFest-", true},
		{"FoodFest-version_01", "FoodFest-", true},
		{"FoodFest-", "FoodFest-", true},
		{"OtherApp-cache", "FoodFest-", false},
		{"OtherApp-FoodFest-version_00", "FoodFest-", false},
		{"foodfest-version_00", "FoodFest-", false},
		{"anything", "", false},
	}
	for _, tt := range tests {
		if got := BelongsToApp(tt.name, tt.prefix); got != tt.want {
			t.Errorf("BelongsToApp(%q, %q) = %v, want %v", tt.name, tt.prefix, got, tt.want)
		}
	}
}

func TestConfig_StaleCaches(t *testing.T) {
	cfg := Config{Prefix: "FoodFest-", Version: "version_02"}
	names := []string{
		"FoodFest-version_00",
		"OtherApp-cache",
		"FoodFest-version_02",
		"FoodFest-version_01",
	}
	want := []string{"FoodFest-version_00", "FoodFest-version_01"}
	if got := cfg.StaleCaches(names); !reflect.DeepEqual(got, want) {
		t.Errorf("StaleCaches() = %v, want %v", got, want)
	}
	if cfg.IsStale("FoodFest-version_02") {
		t.Error("current cache must not be stale")
	}
}
