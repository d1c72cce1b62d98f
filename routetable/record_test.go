package routetable

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteLineRoundTrip(t *testing.T) {
	desc := RouteDescriptor{
		Kind:      RouteKindSite,
		Namespace: "docs",
		Host:      `docs\.example\.com`,
		Path:      "/docs",
	}
	parsed, ok := ParseRouteLine(desc.Line())
	require.True(t, ok)
	assert.Equal(t, desc, parsed)
}

func TestParseRouteLine_PathMayContainCommas(t *testing.T) {
	parsed, ok := ParseRouteLine("url,api,,/v1,with,commas")
	require.True(t, ok)
	assert.Equal(t, "/v1,with,commas", parsed.Path)
}

func TestParseRoutes_SkipsMalformedLines(t *testing.T) {
	serialized := "url,api,,/api\n" +
		"garbage\n" +
		"mystery,x,,/x\n" +
		"\n" +
		"bucket,assets,,/files"
	routes := ParseRoutes(serialized)
	require.Len(t, routes, 2)
	assert.Equal(t, RouteKindURL, routes[0].Kind)
	assert.Equal(t, RouteKindBucket, routes[1].Kind)
}

func TestMetadataJSONRoundTrip(t *testing.T) {
	md := &Metadata{
		Base:      "/docs",
		Custom404: "/404.html",
		S3: &SiteAssets{
			Domain: "bucket.s3.us-east-1.amazonaws.com",
			Dir:    "_assets",
			Routes: []string{"/images", "/fonts"},
		},
		Image:  &ImageOptimizer{Host: "img.lambda-url.us-east-1.on.aws", Route: "/_image"},
		Origin: &OriginOverrides{ReadTimeout: 30},
		Servers: []ServerEndpoint{
			{Host: "srv1.lambda-url.us-east-1.on.aws", Lat: 38.96, Lon: -77.44},
			{Host: "srv2.lambda-url.eu-west-1.on.aws", Lat: 53.35, Lon: -6.26},
		},
	}

	blob, err := json.Marshal(md)
	require.NoError(t, err)

	parsed, err := ParseMetadata(string(blob))
	require.NoError(t, err)
	assert.Equal(t, md, parsed)

	// Stability: serializing the parse yields the identical bytes.
	again, err := json.Marshal(parsed)
	require.NoError(t, err)
	assert.Equal(t, string(blob), string(again))
}

func TestServerEndpoint_CompactArrayForm(t *testing.T) {
	blob, err := json.Marshal(ServerEndpoint{Host: "h", Lat: 1.5, Lon: -2.25})
	require.NoError(t, err)
	assert.JSONEq(t, `["h",1.5,-2.25]`, string(blob))

	var ep ServerEndpoint
	require.NoError(t, json.Unmarshal([]byte(`["h",1.5,-2.25]`), &ep))
	assert.Equal(t, ServerEndpoint{Host: "h", Lat: 1.5, Lon: -2.25}, ep)
}
