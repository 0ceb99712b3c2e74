// ABOUTME: Normalized request identity used for cache lookups and deduplication
// ABOUTME: Drops empty parameters and sorts the rest so equal filters share one key

package querykey

import (
	"net/url"
	"strings"
)

// Key identifies a cached query. It is comparable and safe to use as a map key.
type Key struct {
	endpoint string
	params   string // canonical url-encoded form, sorted by name
}

// New builds a normalized key. Parameters with an empty value are treated as absent.
func New(endpoint string, params map[string]string) Key {
	values := url.Values{}
	for name, value := range params {
		if value == "" {
			continue
		}
		values.Set(name, value)
	}
	// Encode sorts by name
	return Key{endpoint: endpoint, params: values.Encode()}
}

// Endpoint returns the endpoint path of the key.
func (k Key) Endpoint() string {
	return k.endpoint
}

// Query returns the canonical encoded query string.
func (k Key) Query() string {
	return k.params
}

// Values returns a fresh copy of the normalized parameters.
func (k Key) Values() url.Values {
	values, err := url.ParseQuery(k.params)
	if err != nil {
		return url.Values{}
	}
	return values
}

// Param returns the value of a single parameter, or "" when absent.
func (k Key) Param(name string) string {
	return k.Values().Get(name)
}

// HasPrefix reports whether the key's endpoint starts with prefix.
func (k Key) HasPrefix(prefix string) bool {
	return strings.HasPrefix(k.endpoint, prefix)
}

func (k Key) String() string {
	if k.params == "" {
		return k.endpoint
	}
	return k.endpoint + "?" + k.params
}
