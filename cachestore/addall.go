package cachestore

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// FetchFunc retrieves the network response for a URL.
type FetchFunc func(ctx context.Context, url string) (*Response, error)

// DefaultAddAllConcurrency bounds parallel fetches in AddAll.
const DefaultAddAllConcurrency = 8

// AddAll fetches every url and stores the results in c.
//
// All fetches must succeed with a 2xx status before anything is written;
// the first failure cancels the remaining fetches and is returned. Nothing
// is retried. A limit <= 0 uses DefaultAddAllConcurrency.
func AddAll(ctx context.Context, c Cache, fetch FetchFunc, urls []string, limit int) error {
	if c == nil {
		return ErrNilStorage
	}
	if limit <= 0 {
		limit = DefaultAddAllConcurrency
	}
	for _, u := range urls {
		if _, err := Key(u); err != nil {
			return fmt.Errorf("add %q: %w", u, err)
		}
	}

	responses := make([]*Response, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, u := range urls {
		g.Go(func() error {
			resp, err := fetch(gctx, u)
			if err != nil {
				return fmt.Errorf("fetch %q: %w", u, err)
			}
			if resp == nil {
				return fmt.Errorf("fetch %q: %w", u, ErrNilResponse)
			}
			if !resp.OK() {
				return fmt.Errorf("fetch %q: %w (status %d)", u, ErrBadResponse, resp.Status)
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	entries := make([]Entry, len(urls))
	for i, u := range urls {
		entries[i] = Entry{URL: u, Response: responses[i]}
	}
	return c.PutAll(ctx, entries)
}
