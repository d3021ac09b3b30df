package network

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultMaxRequestBody bounds request bodies read by FromHTTP.
const DefaultMaxRequestBody = 10 << 20

// Request describes an intercepted outbound request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewRequest creates a request with no headers or body.
func NewRequest(method, url string) *Request {
	if method == "" {
		method = http.MethodGet
	}
	return &Request{Method: strings.ToUpper(method), URL: url, Header: make(http.Header)}
}

// Get is shorthand for NewRequest(http.MethodGet, url).
func Get(url string) *Request {
	return NewRequest(http.MethodGet, url)
}

// IsCacheable reports whether the request may be answered from a cache.
// Only GET and HEAD qualify; everything else passes through to the network.
func (r *Request) IsCacheable() bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

// FromHTTP converts an inbound server request. The URL keeps only the
// request URI (path and query), matching how manifest entries are written.
func FromHTTP(r *http.Request) (*Request, error) {
	req := &Request{
		Method: r.Method,
		URL:    r.URL.RequestURI(),
		Header: r.Header.Clone(),
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if r.Body != nil && r.Body != http.NoBody {
		body, err := io.ReadAll(io.LimitReader(r.Body, DefaultMaxRequestBody+1))
		if err != nil {
			return nil, fmt.Errorf("network: read request body: %w", err)
		}
		if len(body) > DefaultMaxRequestBody {
			return nil, ErrBodyTooLarge
		}
		req.Body = body
	}
	return req, nil
}
