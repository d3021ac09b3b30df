package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/offlinecache/cachestore"
)

// DefaultMaxBodyBytes bounds response bodies read by HTTPFetcher.
const DefaultMaxBodyBytes = 64 << 20

// hopHeaders are connection-scoped and never forwarded upstream.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Fetcher retrieves a response from the network.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Fetch must honor cancellation/deadlines.
// - Errors: a response with any status is returned as-is; errors are
//   reserved for transport failures.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*cachestore.Response, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *Request) (*cachestore.Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*cachestore.Response, error) {
	return f(ctx, req)
}

// Loader turns a Fetcher into a cachestore.FetchFunc that issues GETs.
func Loader(f Fetcher) cachestore.FetchFunc {
	return func(ctx context.Context, url string) (*cachestore.Response, error) {
		return f.Fetch(ctx, Get(url))
	}
}

// HTTPFetcher fetches relative URLs from a fixed origin.
type HTTPFetcher struct {
	origin  *url.URL
	client  *http.Client
	maxBody int64
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithClient sets the HTTP client. Default: a client with a 30s timeout.
func WithClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithMaxBodyBytes bounds response bodies. Default: DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// NewHTTPFetcher creates a fetcher for the given origin (scheme and host,
// optionally with a base path).
func NewHTTPFetcher(origin string, opts ...HTTPOption) (*HTTPFetcher, error) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrigin, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidOrigin, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidOrigin)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	f := &HTTPFetcher{
		origin:  u,
		client:  &http.Client{Timeout: 30 * time.Second},
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Origin returns the origin base URL.
func (f *HTTPFetcher) Origin() string {
	return f.origin.String()
}

// Resolve turns a request URL into an absolute origin URL. Paths are
// resolved relative to the origin base path.
func (f *HTTPFetcher) Resolve(raw string) (*url.URL, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("network: parse %q: %w", raw, err)
	}
	if ref.IsAbs() {
		return ref, nil
	}
	if strings.HasPrefix(ref.Path, "/") {
		ref.Path = "." + ref.Path
	}
	return f.origin.ResolveReference(ref), nil
}

// Fetch performs the request and reads the full body.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*cachestore.Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	target, err := f.Resolve(req.URL)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("network: build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		httpReq.Header.Del(h)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("network: fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("network: read %s: %w", target, err)
	}
	if int64(len(data)) > f.maxBody {
		return nil, fmt.Errorf("%w: %s", ErrBodyTooLarge, target)
	}

	header := resp.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}
	if req.Method == http.MethodHead && resp.ContentLength >= 0 && header.Get("Content-Length") == "" {
		header.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	return &cachestore.Response{
		URL:    req.URL,
		Status: resp.StatusCode,
		Header: header,
		Body:   data,
	}, nil
}

// Ensure HTTPFetcher implements Fetcher
var _ Fetcher = (*HTTPFetcher)(nil)
