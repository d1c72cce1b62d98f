package routetable

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RouteKind discriminates what kind of origin a route targets.
type RouteKind string

const (
	RouteKindURL    RouteKind = "url"
	RouteKindBucket RouteKind = "bucket"
	RouteKindSite   RouteKind = "site"
)

// RouteDescriptor is one entry in the global route list.
//
// The stored list is in insertion order. Match priority is computed at
// request time, never at write time.
type RouteDescriptor struct {
	Kind      RouteKind
	Namespace string
	Host      string // compiled regex fragment, "" matches any host
	Path      string // normalized prefix, starts with "/"
}

// Line serializes the descriptor as one line of the stored route list.
func (d RouteDescriptor) Line() string {
	return strings.Join([]string{string(d.Kind), d.Namespace, d.Host, d.Path}, ",")
}

// ParseRouteLine parses one stored line. Malformed lines are reported, not
// fatal: readers skip them.
func ParseRouteLine(line string) (RouteDescriptor, bool) {
	parts := strings.SplitN(line, ",", 4)
	if len(parts) != 4 {
		return RouteDescriptor{}, false
	}
	d := RouteDescriptor{
		Kind:      RouteKind(parts[0]),
		Namespace: parts[1],
		Host:      parts[2],
		Path:      parts[3],
	}
	switch d.Kind {
	case RouteKindURL, RouteKindBucket, RouteKindSite:
	default:
		return RouteDescriptor{}, false
	}
	if !strings.HasPrefix(d.Path, "/") {
		return RouteDescriptor{}, false
	}
	return d, true
}

// EncodeRoutes serializes descriptors as newline-separated lines.
func EncodeRoutes(routes []RouteDescriptor) string {
	lines := make([]string, 0, len(routes))
	for _, d := range routes {
		lines = append(lines, d.Line())
	}
	return strings.Join(lines, "\n")
}

// ParseRoutes parses a serialized route list, skipping malformed lines.
func ParseRoutes(serialized string) []RouteDescriptor {
	var out []RouteDescriptor
	for _, line := range strings.Split(serialized, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if d, ok := ParseRouteLine(line); ok {
			out = append(out, d)
		}
	}
	return out
}

// Rewrite replaces the request path before routing when it matches Regex.
type Rewrite struct {
	Regex string `json:"regex"`
	To    string `json:"to"`
}

// OriginOverrides are per-origin timeout settings in seconds. Only the
// timeouts the origin-request event can carry are supported; connection
// attempts and connection timeout are fixed by the platform.
type OriginOverrides struct {
	ReadTimeout      int `json:"readTimeout,omitempty"`
	KeepAliveTimeout int `json:"keepaliveTimeout,omitempty"`
}

// SiteAssets describes where a site's static assets live.
type SiteAssets struct {
	Domain string `json:"domain"`
	Dir    string `json:"dir"`
	// Files is the flat key set of literal top-level files, probed before
	// directory routes.
	Files []string `json:"files,omitempty"`
	// Routes are the directory-routable subpaths, coarse grained (one entry
	// per top-level directory, not enumerated file by file).
	Routes []string `json:"routes"`
}

// ImageOptimizer routes image transformation requests to a sidecar origin.
type ImageOptimizer struct {
	Host  string `json:"host"`
	Route string `json:"route"`
}

// ServerEndpoint is one regional compute origin with its geo coordinates.
// It serializes as the compact array form [host, lat, lon].
type ServerEndpoint struct {
	Host string
	Lat  float64
	Lon  float64
}

func (s ServerEndpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Host, s.Lat, s.Lon})
}

func (s *ServerEndpoint) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("routetable: empty server endpoint")
	}
	if err := json.Unmarshal(raw[0], &s.Host); err != nil {
		return fmt.Errorf("routetable: server endpoint host: %w", err)
	}
	if len(raw) > 1 {
		if err := json.Unmarshal(raw[1], &s.Lat); err != nil {
			return fmt.Errorf("routetable: server endpoint lat: %w", err)
		}
	}
	if len(raw) > 2 {
		if err := json.Unmarshal(raw[2], &s.Lon); err != nil {
			return fmt.Errorf("routetable: server endpoint lon: %w", err)
		}
	}
	return nil
}

// Metadata is the per-namespace blob describing how to serve a match. It is
// a union discriminated by the route kind: url routes use Host, bucket routes
// use Bucket, site routes use the site fields. A blob is immutable for one
// deploy and fully replaced on redeploy.
type Metadata struct {
	// url variant
	Host string `json:"host,omitempty"`

	// bucket variant
	Bucket string `json:"bucket,omitempty"`

	// shared
	Rewrite *Rewrite         `json:"rewrite,omitempty"`
	Origin  *OriginOverrides `json:"origin,omitempty"`

	// site variant
	Base      string           `json:"base,omitempty"`
	Custom404 string           `json:"custom404,omitempty"`
	S3        *SiteAssets      `json:"s3,omitempty"`
	Image     *ImageOptimizer  `json:"image,omitempty"`
	Servers   []ServerEndpoint `json:"servers,omitempty"`
}

// ParseMetadata decodes a stored metadata blob.
func ParseMetadata(value string) (*Metadata, error) {
	var md Metadata
	if err := json.Unmarshal([]byte(value), &md); err != nil {
		return nil, err
	}
	return &md, nil
}
