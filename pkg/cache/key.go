package cache

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every CDN cache key.
const KeyPrefix = "cdn:"

// ErrInvalidEndpoint indicates an endpoint that cannot be turned into a key.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// Key identifies a cached CDN response.
type Key struct {
	// Endpoint is the escaped CDN path (e.g., "/products/serum%23travel")
	Endpoint string

	// QueryParams are the request query parameters
	QueryParams url.Values
}

// KeyFromEndpoint splits an endpoint such as "/products?search=serum&category=face"
// into path and query.
func KeyFromEndpoint(endpoint string) (Key, error) {
	if strings.TrimSpace(endpoint) == "" {
		return Key{}, fmt.Errorf("%w: empty", ErrInvalidEndpoint)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.IsAbs() || u.Host != "" {
		return Key{}, fmt.Errorf("%w: %q must be a path", ErrInvalidEndpoint, endpoint)
	}

	return Key{
		Endpoint:    u.EscapedPath(),
		QueryParams: u.Query(),
	}, nil
}

// Path returns the endpoint with a leading slash and canonical query,
// suitable for appending to a base URL.
func (k Key) Path() string {
	path := k.Endpoint
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	query := k.canonicalQuery()
	if query == "" {
		return path
	}
	return path + "?" + query
}

// String generates a deterministic cache key string.
// Format: cdn:/endpoint?a=1&b=2
//
// Parameter names and the values of each name are sorted, so insertion
// order never changes the key.
func (k Key) String() string {
	return KeyPrefix + k.Path()
}

func (k Key) canonicalQuery() string {
	if len(k.QueryParams) == 0 {
		return ""
	}

	names := make([]string, 0, len(k.QueryParams))
	for name := range k.QueryParams {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		values := append([]string(nil), k.QueryParams[name]...)
		sort.Strings(values)
		for _, v := range values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(name))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
