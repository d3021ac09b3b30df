package cachestore

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation.
type MemoryStorage struct {
	mu     sync.RWMutex
	caches map[string]*MemoryCache
	order  []string
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		caches: make(map[string]*MemoryCache),
	}
}

// Open returns the named cache, creating it if absent.
func (s *MemoryStorage) Open(ctx context.Context, name string) (Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.caches[name]; ok {
		return c, nil
	}
	c := newMemoryCache(name)
	s.caches[name] = c
	s.order = append(s.order, name)
	return c, nil
}

// Lookup returns the named cache without creating it.
func (s *MemoryStorage) Lookup(ctx context.Context, name string) (Cache, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	c, ok := s.caches[name]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return c, true, nil
}

// Has reports whether the named cache exists.
func (s *MemoryStorage) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	_, ok := s.caches[name]
	s.mu.RUnlock()
	return ok, nil
}

// Keys lists cache names in creation order.
func (s *MemoryStorage) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.order))
	copy(names, s.order)
	return names, nil
}

// Delete removes the named cache. Handles already returned by Open keep
// working but are no longer reachable through the storage.
func (s *MemoryStorage) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.caches[name]; !ok {
		return false, nil
	}
	delete(s.caches, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Match looks url up across every cache in creation order.
func (s *MemoryStorage) Match(ctx context.Context, url string) (*Response, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	key, err := Key(url)
	if err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	caches := make([]*MemoryCache, 0, len(s.order))
	for _, name := range s.order {
		caches = append(caches, s.caches[name])
	}
	s.mu.RUnlock()

	for _, c := range caches {
		if resp, ok := c.get(key); ok {
			return resp, true, nil
		}
	}
	return nil, false, nil
}

// MemoryCache is a single in-memory cache.
type MemoryCache struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*Response
	order   []string
}

func newMemoryCache(name string) *MemoryCache {
	return &MemoryCache{
		name:    name,
		entries: make(map[string]*Response),
	}
}

// Name returns the cache name.
func (c *MemoryCache) Name() string {
	return c.name
}

// Put stores a copy of resp under url.
func (c *MemoryCache) Put(ctx context.Context, url string, resp *Response) error {
	return c.PutAll(ctx, []Entry{{URL: url, Response: resp}})
}

// PutAll validates every entry before storing any of them.
func (c *MemoryCache) PutAll(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prepared, err := prepareEntries(entries, time.Now())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range prepared {
		if _, exists := c.entries[p.key]; !exists {
			c.order = append(c.order, p.key)
		}
		c.entries[p.key] = p.resp
	}
	return nil
}

// Match returns a copy of the response stored for url.
func (c *MemoryCache) Match(ctx context.Context, url string) (*Response, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	key, err := Key(url)
	if err != nil {
		return nil, false, err
	}
	resp, ok := c.get(key)
	return resp, ok, nil
}

// Delete removes the entry for url. Idempotent.
func (c *MemoryCache) Delete(ctx context.Context, url string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key, err := Key(url)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return false, nil
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Keys lists canonical keys in insertion order.
func (c *MemoryCache) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, len(c.order))
	copy(keys, c.order)
	return keys, nil
}

func (c *MemoryCache) get(key string) (*Response, bool) {
	c.mu.RLock()
	resp, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return resp.Clone(), true
}

type preparedEntry struct {
	key  string
	resp *Response
}

// prepareEntries canonicalizes keys and copies responses, failing before
// anything is written if a single entry is unusable.
func prepareEntries(entries []Entry, now time.Time) ([]preparedEntry, error) {
	out := make([]preparedEntry, 0, len(entries))
	for _, e := range entries {
		if e.Response == nil {
			return nil, ErrNilResponse
		}
		key, err := Key(e.URL)
		if err != nil {
			return nil, err
		}
		resp := e.Response.Clone()
		if resp.StoredAt.IsZero() {
			resp.StoredAt = now.UTC()
		}
		out = append(out, preparedEntry{key: key, resp: resp})
	}
	return out, nil
}

// Ensure MemoryStorage implements Storage
var _ Storage = (*MemoryStorage)(nil)

// Ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)
