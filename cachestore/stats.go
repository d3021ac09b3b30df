package cachestore

import (
	"context"
	"fmt"
)

// CacheStats summarises one cache.
type CacheStats struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
	Bytes   int64  `json:"bytes"`
}

// Stats walks every cache in s and reports entry counts and body sizes.
// Caches deleted while the walk is in progress are skipped and never
// recreated.
func Stats(ctx context.Context, s Storage) ([]CacheStats, error) {
	if s == nil {
		return nil, ErrNilStorage
	}
	names, err := s.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}

	out := make([]CacheStats, 0, len(names))
	for _, name := range names {
		c, ok, err := s.Lookup(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("lookup %q: %w", name, err)
		}
		if !ok {
			continue
		}
		keys, err := c.Keys(ctx)
		if err != nil {
			return nil, fmt.Errorf("keys %q: %w", name, err)
		}
		st := CacheStats{Name: name, Entries: len(keys)}
		for _, k := range keys {
			resp, found, err := c.Match(ctx, k)
			if err != nil {
				return nil, err
			}
			if found {
				st.Bytes += int64(len(resp.Body))
			}
		}
		out = append(out, st)
	}
	return out, nil
}
