package cachestore

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// MaxNameLength is the maximum allowed length for a cache name.
const MaxNameLength = 256

// Sentinel errors for cache storage operations.
var (
	ErrNilStorage    = errors.New("cachestore: storage is nil")
	ErrInvalidName   = errors.New("cachestore: cache name is invalid")
	ErrNameTooLong   = errors.New("cachestore: cache name exceeds max length")
	ErrInvalidKey    = errors.New("cachestore: key is invalid")
	ErrKeyTooLong    = errors.New("cachestore: key exceeds max length")
	ErrNilResponse   = errors.New("cachestore: response is nil")
	ErrCacheNotFound = errors.New("cachestore: cache not found")
	ErrBadResponse   = errors.New("cachestore: response status is not ok")
)

// Response is a stored response. Values handed out by a Storage are copies;
// mutating them never changes what is stored.
type Response struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body,omitempty"`
	StoredAt time.Time   `json:"stored_at"`
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status <= 299
}

// Clone returns a deep copy of r.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Header = r.Header.Clone()
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return &out
}

// Entry pairs a request URL with the response stored for it.
type Entry struct {
	URL      string
	Response *Response
}

// Storage is the set of named caches visible to one origin.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ordering: Keys and Match walk caches in creation order.
// - Errors: Match returns (nil, false, nil) on a miss; errors are reserved
//   for backend failures.
type Storage interface {
	// Open returns the named cache, creating it if absent.
	Open(ctx context.Context, name string) (Cache, error)

	// Lookup returns the named cache only if it already exists. Read-only
	// callers use it so they never recreate a cache deleted under them.
	Lookup(ctx context.Context, name string) (Cache, bool, error)

	// Has reports whether the named cache exists.
	Has(ctx context.Context, name string) (bool, error)

	// Keys lists every cache name.
	Keys(ctx context.Context) ([]string, error)

	// Delete removes the named cache and all of its entries.
	// Returns false if it did not exist.
	Delete(ctx context.Context, name string) (bool, error)

	// Match looks url up across every cache and returns the first hit.
	Match(ctx context.Context, url string) (*Response, bool, error)
}

// Cache is a single named mapping from request URL to stored response.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Atomicity: PutAll stores every entry or none of them.
// - Keys: URLs are canonicalized with Key before use.
type Cache interface {
	// Name returns the cache name.
	Name() string

	// Put stores a single response.
	Put(ctx context.Context, url string, resp *Response) error

	// PutAll stores a batch of responses.
	PutAll(ctx context.Context, entries []Entry) error

	// Match returns the stored response for url. Returns (nil, false, nil) on miss.
	Match(ctx context.Context, url string) (*Response, bool, error)

	// Delete removes the entry for url. Returns false if it was absent.
	Delete(ctx context.Context, url string) (bool, error)

	// Keys lists the canonical keys held by the cache.
	Keys(ctx context.Context) ([]string, error)
}

// ValidateName checks if a cache name is usable.
func ValidateName(name string) error {
	if name == "" || strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return ErrInvalidName
		}
	}
	return nil
}
