package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecraft/edgecraft/routetable"
)

func siteMetadata() *routetable.Metadata {
	return &routetable.Metadata{
		S3: &routetable.SiteAssets{
			Domain: "site.s3.us-east-1.amazonaws.com",
			Dir:    "_assets",
			Files:  []string{"index.html", "about.html", "favicon.ico"},
			Routes: []string{"/images"},
		},
	}
}

func siteProvider(t *testing.T, md *routetable.Metadata) *routetable.MemoryProvider {
	t.Helper()
	return seededTable(t, defaultLimits(),
		register(routetable.RouteDescriptor{Kind: routetable.RouteKindSite, Namespace: "site", Path: "/"}, md),
	)
}

func TestSite_LiteralFileProbePrecedesDirectoryRoutes(t *testing.T) {
	md := siteMetadata()
	md.S3.Routes = []string{"/about"}
	provider := siteProvider(t, md)

	req := newRequest("example.com", "/about")
	New(provider).Dispatch(context.Background(), req)

	require.NotNil(t, req.Origin)
	assert.Equal(t, OriginS3, req.Origin.Type)
	assert.Equal(t, "/_assets/about.html", req.URI)
}

func TestSite_RootServesIndex(t *testing.T) {
	provider := siteProvider(t, siteMetadata())

	req := newRequest("example.com", "/")
	New(provider).Dispatch(context.Background(), req)

	require.NotNil(t, req.Origin)
	assert.Equal(t, "/_assets/index.html", req.URI)
	assert.Empty(t, req.Cookies)
}

func TestSite_DirectoryRoutePassesFilesThrough(t *testing.T) {
	provider := siteProvider(t, siteMetadata())

	req := newRequest("example.com", "/images/logo.png")
	New(provider).Dispatch(context.Background(), req)

	require.NotNil(t, req.Origin)
	assert.Equal(t, OriginS3, req.Origin.Type)
	assert.Equal(t, "/_assets/images/logo.png", req.URI)
}

func TestSite_DirectoryRouteIndexesExtensionlessPaths(t *testing.T) {
	md := siteMetadata()
	md.S3.Routes = []string{"/docs"}
	provider := siteProvider(t, md)

	page := newRequest("example.com", "/docs/guide")
	New(provider).Dispatch(context.Background(), page)
	assert.Equal(t, "/_assets/docs/guide.html", page.URI)

	dir := newRequest("example.com", "/docs/guide/")
	New(provider).Dispatch(context.Background(), dir)
	assert.Equal(t, "/_assets/docs/guide/index.html", dir.URI)
}

func TestSite_Custom404(t *testing.T) {
	md := siteMetadata()
	md.Custom404 = "/404.html"
	provider := siteProvider(t, md)

	req := newRequest("example.com", "/missing/page")
	New(provider).Dispatch(context.Background(), req)

	require.NotNil(t, req.Origin)
	assert.Equal(t, "/_assets/404.html", req.URI)
}

func TestSite_BaseStrip(t *testing.T) {
	md := siteMetadata()
	md.Base = "/docs"
	provider := seededTable(t, defaultLimits(),
		register(routetable.RouteDescriptor{Kind: routetable.RouteKindSite, Namespace: "site", Path: "/docs"}, md),
	)

	req := newRequest("example.com", "/docs/about")
	New(provider).Dispatch(context.Background(), req)

	require.NotNil(t, req.Origin)
	assert.Equal(t, "/_assets/about.html", req.URI)
}

func TestSite_EncodedURIIsDecodedBeforeProbing(t *testing.T) {
	provider := siteProvider(t, siteMetadata())

	req := newRequest("example.com", "/%61bout")
	New(provider).Dispatch(context.Background(), req)

	require.NotNil(t, req.Origin)
	assert.Equal(t, "/_assets/about.html", req.URI)
}

func serverMetadata(servers ...routetable.ServerEndpoint) *routetable.Metadata {
	return &routetable.Metadata{
		Servers: servers,
		Origin:  &routetable.OriginOverrides{ReadTimeout: 30},
	}
}

func TestSite_SingleServerIgnoresCoordinates(t *testing.T) {
	provider := siteProvider(t, serverMetadata(
		routetable.ServerEndpoint{Host: "only.internal", Lat: 38.96, Lon: -77.44},
	))

	req := newRequest("example.com", "/app")
	req.SetHeader("cloudfront-viewer-latitude", "53.35")
	req.SetHeader("cloudfront-viewer-longitude", "-6.26")
	New(provider).Dispatch(context.Background(), req)

	require.NotNil(t, req.Origin)
	assert.Equal(t, "only.internal", req.Origin.Domain)
}

func TestSite_NearestServerByHaversine(t *testing.T) {
	virginia := routetable.ServerEndpoint{Host: "use1.internal", Lat: 38.96, Lon: -77.44}
	ireland := routetable.ServerEndpoint{Host: "euw1.internal", Lat: 53.35, Lon: -6.26}
	provider := siteProvider(t, serverMetadata(virginia, ireland))

	req := newRequest("example.com", "/app")
	req.SetHeader("cloudfront-viewer-latitude", "48.85") // Paris
	req.SetHeader("cloudfront-viewer-longitude", "2.35")
	New(provider).Dispatch(context.Background(), req)

	require.NotNil(t, req.Origin)
	assert.Equal(t, "euw1.internal", req.Origin.Domain)
	assert.Equal(t, 30, req.Origin.Overrides.ReadTimeout)
}

func TestSite_MissingCoordinatesDefaultToFirstServer(t *testing.T) {
	virginia := routetable.ServerEndpoint{Host: "use1.internal", Lat: 38.96, Lon: -77.44}
	ireland := routetable.ServerEndpoint{Host: "euw1.internal", Lat: 53.35, Lon: -6.26}
	provider := siteProvider(t, serverMetadata(virginia, ireland))

	req := newRequest("example.com", "/app")
	New(provider).Dispatch(context.Background(), req)

	require.NotNil(t, req.Origin)
	assert.Equal(t, "use1.internal", req.Origin.Domain)
}

func TestSite_ServerHeadersInjected(t *testing.T) {
	provider := siteProvider(t, serverMetadata(
		routetable.ServerEndpoint{Host: "srv.internal", Lat: 38.96, Lon: -77.44},
	))

	req := newRequest("www.example.com", "/app")
	req.SetHeader("cloudfront-viewer-city", "Paris")
	req.SetHeader("cloudfront-viewer-country", "FR")
	req.SetHeader("cloudfront-viewer-country-region", "IDF")
	req.SetHeader("cloudfront-viewer-latitude", "48.85")
	req.SetHeader("cloudfront-viewer-longitude", "2.35")
	New(provider).Dispatch(context.Background(), req)

	assert.Equal(t, "www.example.com", req.Header("x-forwarded-host"))
	assert.Equal(t, "Paris", req.Header("x-open-next-city"))
	assert.Equal(t, "FR", req.Header("x-open-next-country"))
	assert.Equal(t, "IDF", req.Header("x-open-next-region"))
	assert.Equal(t, "48.85", req.Header("x-open-next-latitude"))
	assert.Equal(t, "2.35", req.Header("x-open-next-longitude"))
	assert.NotEmpty(t, req.Header("x-open-next-cache-key"))
}

func TestSite_ImageOptimizerRoute(t *testing.T) {
	md := serverMetadata(routetable.ServerEndpoint{Host: "srv.internal", Lat: 0, Lon: 0})
	md.Image = &routetable.ImageOptimizer{Host: "img.internal", Route: "/_image"}
	provider := siteProvider(t, md)

	req := newRequest("example.com", "/_image?url=/photo.jpg&w=640")
	req.URI = "/_image"
	req.QueryString = "url=/photo.jpg&w=640"
	req.SetHeader("accept", "image/webp")
	New(provider).Dispatch(context.Background(), req)

	require.NotNil(t, req.Origin)
	assert.Equal(t, "img.internal", req.Origin.Domain)
	assert.NotEmpty(t, req.Header("x-open-next-cache-key"))
}
