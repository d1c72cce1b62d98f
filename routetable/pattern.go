package routetable

import (
	"regexp"
	"strings"

	"github.com/edgecraft/edgecraft"
)

// Pattern is the compiled form of a user-facing route pattern.
//
// Host is a regex fragment: metacharacters escaped, globs expanded. An empty
// Host matches any host. Path is a normalized prefix starting with "/".
type Pattern struct {
	Host string
	Path string
}

var hostMetachars = regexp.MustCompile(`[.+?^${}()|[\]\\]`)

// CompilePattern splits a "<hostGlob>/<pathSegments>" pattern on its first
// slash and compiles the two halves. A pattern without a slash is invalid;
// at minimum a leading "/" is required.
func CompilePattern(pattern string) (Pattern, error) {
	parts := strings.Split(pattern, "/")
	if len(parts) < 2 {
		return Pattern{}, &edgecraft.ValidationError{
			Field:   "pattern",
			Message: `route pattern must contain "/" (e.g. "/api" or "*.example.com/")`,
		}
	}

	host := hostMetachars.ReplaceAllString(parts[0], `\$0`)
	host = strings.ReplaceAll(host, "*", ".*")

	return Pattern{
		Host: host,
		Path: "/" + strings.Join(parts[1:], "/"),
	}, nil
}
