package worker

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jonwraymond/offlinecache/cachestore"
)

// Config identifies one deployed version of the application's cache.
type Config struct {
	// Prefix marks every cache owned by the application, e.g. "FoodFest-".
	Prefix string

	// Version distinguishes deployments, e.g. "version_01". Bumping it is
	// the only way to invalidate cached assets.
	Version string

	// Manifest lists the relative URLs installed into the cache, in order.
	Manifest []string
}

// CacheName returns the cache identifier, Prefix followed by Version.
func (c Config) CacheName() string {
	return c.Prefix + c.Version
}

// Validate checks that the identifier is a usable cache name and that every
// manifest entry is a distinct, valid URL.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Prefix) == "" {
		return fmt.Errorf("%w: prefix is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidConfig)
	}
	if err := cachestore.ValidateName(c.CacheName()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	seen := make(map[string]string, len(c.Manifest))
	for _, u := range c.Manifest {
		key, err := cachestore.Key(u)
		if err != nil {
			return fmt.Errorf("%w: manifest entry %q: %w", ErrInvalidConfig, u, err)
		}
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("%w: manifest entries %q and %q name the same URL", ErrInvalidConfig, prev, u)
		}
		seen[key] = u
	}
	return nil
}

// BelongsToApp reports whether a cache name carries the application prefix.
// An empty prefix owns nothing.
func BelongsToApp(name, prefix string) bool {
	return prefix != "" && strings.HasPrefix(name, prefix)
}

// IsStale reports whether name is an older (or otherwise non-current)
// cache of this application, and therefore due for deletion on activate.
func (c Config) IsStale(name string) bool {
	return BelongsToApp(name, c.Prefix) && name != c.CacheName()
}

// StaleCaches filters names down to the stale ones, keeping their order.
func (c Config) StaleCaches(names []string) []string {
	var stale []string
	for _, name := range names {
		if c.IsStale(name) {
			stale = append(stale, name)
		}
	}
	return slices.Clip(stale)
}
