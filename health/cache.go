package health

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/jonwraymond/offlinecache/cachestore"
)

// CacheChecker verifies that the current cache holds the whole manifest.
type CacheChecker struct {
	storage  cachestore.Storage
	name     string
	manifest []string
}

// NewCacheChecker creates a checker for the named cache and manifest.
func NewCacheChecker(storage cachestore.Storage, name string, manifest []string) *CacheChecker {
	return &CacheChecker{
		storage:  storage,
		name:     name,
		manifest: append([]string(nil), manifest...),
	}
}

// Name returns "cache".
func (c *CacheChecker) Name() string {
	return "cache"
}

// Check reports healthy when every manifest URL is cached, degraded when
// only some are, and unhealthy when the cache is missing or empty.
func (c *CacheChecker) Check(ctx context.Context) Result {
	cache, ok, err := c.storage.Lookup(ctx, c.name)
	if err != nil {
		return Unhealthy("cache lookup failed", err)
	}
	if !ok {
		return Unhealthy(fmt.Sprintf("cache %s not installed", c.name), ErrCacheMissing)
	}

	var (
		missing []string
		size    uint64
	)
	for _, u := range c.manifest {
		resp, hit, err := cache.Match(ctx, u)
		if err != nil {
			return Unhealthy("cache lookup failed", err)
		}
		if !hit {
			missing = append(missing, u)
			continue
		}
		size += uint64(len(resp.Body))
	}

	cached := len(c.manifest) - len(missing)
	details := map[string]any{
		"cache":    c.name,
		"cached":   cached,
		"manifest": len(c.manifest),
		"size":     humanize.Bytes(size),
	}
	if len(missing) > 0 {
		details["missing"] = missing
	}

	switch {
	case len(missing) == 0:
		return Healthy(fmt.Sprintf("%d assets cached", cached)).WithDetails(details)
	case cached == 0:
		return Unhealthy("cache is empty", ErrCheckFailed).WithDetails(details)
	default:
		return Degraded(fmt.Sprintf("%d of %d assets cached", cached, len(c.manifest))).WithDetails(details)
	}
}

var _ Checker = (*CacheChecker)(nil)
