package cachestore

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a canonical key.
const MaxKeyLength = 2048

var rootURL = &url.URL{Path: "/"}

// Key canonicalizes a request URL into the key used for lookups.
//
// Relative URLs are resolved against the site root, so "./index.html",
// "index.html" and "/index.html" share a key. Fragments are dropped, the
// scheme and host are lower-cased and the query string is kept verbatim.
// The same input always produces the same key.
func Key(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidKey
	}
	if strings.ContainsAny(raw, "\n\r") {
		return "", ErrInvalidKey
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	u.Fragment = ""
	u.RawFragment = ""

	if u.Scheme == "" && u.Host == "" {
		u = rootURL.ResolveReference(u)
	} else {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		if u.Path == "" {
			u.Path = "/"
		}
	}

	key := u.String()
	if len(key) > MaxKeyLength {
		return "", ErrKeyTooLong
	}
	return key, nil
}

// MustKey is like Key but panics on invalid input. Intended for constants.
func MustKey(raw string) string {
	k, err := Key(raw)
	if err != nil {
		panic(err)
	}
	return k
}

// encodeKey hashes a canonical key with MD5 and returns the hex string,
// giving backends a fixed-length, filesystem-safe object name.
func encodeKey(key string) string {
	h := md5.New()
	_, _ = h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}
