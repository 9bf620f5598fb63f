package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// CanonicalQuery encodes query with keys and values sorted so that two
// requests for the same resource produce the same cache key.
func CanonicalQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		for _, v := range values {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

// GenerateKeyWithQuery joins a path and its canonical query.
func GenerateKeyWithQuery(path string, query url.Values) string {
	q := CanonicalQuery(query)
	if q == "" {
		return path
	}
	return path + "?" + q
}

// StorageKey hashes a resource key into a bounded backend key.
func StorageKey(resourceKey string) string {
	hash := sha256.Sum256([]byte(resourceKey))
	return "res:" + hex.EncodeToString(hash[:16])
}
