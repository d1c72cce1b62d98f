package dispatch

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// CacheKey derives the cache-key header for server origins: a hash over the
// normalized host, path, query string, and cookies, so semantically
// identical requests collapse to one cache entry regardless of query
// parameter order or cookie ordering.
func CacheKey(req *Request) string {
	h := xxhash.New()
	_, _ = h.WriteString(strings.ToLower(req.Host()))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(req.URI)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(canonicalQuery(req.QueryString))

	names := make([]string, 0, len(req.Cookies))
	for name := range req.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = h.WriteString("|" + name + "=" + req.Cookies[name])
	}

	return strconv.FormatUint(h.Sum64(), 16)
}

// ImageCacheKey derives the narrower cache key for image-optimization
// requests: only the Accept header and path vary the response.
func ImageCacheKey(req *Request) string {
	h := xxhash.New()
	_, _ = h.WriteString(req.Header("accept"))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(req.URI)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(canonicalQuery(req.QueryString))
	return strconv.FormatUint(h.Sum64(), 16)
}

// canonicalQuery sorts query parameters so ordering does not fragment the
// cache.
func canonicalQuery(query string) string {
	if query == "" {
		return ""
	}
	params := strings.Split(query, "&")
	sort.Strings(params)
	return strings.Join(params, "&")
}
