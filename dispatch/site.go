package dispatch

import (
	"net/url"
	"path"
	"strings"

	"github.com/edgecraft/edgecraft/routetable"
)

// Viewer headers provided by the edge platform.
const (
	headerViewerLatitude  = "cloudfront-viewer-latitude"
	headerViewerLongitude = "cloudfront-viewer-longitude"
	headerViewerCity      = "cloudfront-viewer-city"
	headerViewerCountry   = "cloudfront-viewer-country"
	headerViewerRegion    = "cloudfront-viewer-country-region"
)

// Headers injected for framework server origins.
const (
	headerForwardedHost = "x-forwarded-host"
	headerGeoCity       = "x-open-next-city"
	headerGeoCountry    = "x-open-next-country"
	headerGeoRegion     = "x-open-next-region"
	headerGeoLatitude   = "x-open-next-latitude"
	headerGeoLongitude  = "x-open-next-longitude"
	headerCacheKey      = "x-open-next-cache-key"
)

// applySite executes the site sub-dispatch: literal asset probe, directory
// routes, custom 404, image optimizer, then nearest regional server.
func (d *Dispatcher) applySite(req *Request, md *routetable.Metadata) {
	decoded, err := url.PathUnescape(req.URI)
	if err != nil {
		decoded = req.URI
	}

	rel := decoded
	if md.Base != "" && md.Base != "/" {
		rel = strings.TrimPrefix(rel, strings.TrimSuffix(md.Base, "/"))
		if rel == "" {
			rel = "/"
		}
	}

	if md.S3 != nil {
		if key, ok := probeAssets(md.S3, rel); ok {
			d.routeToAssets(req, md, key)
			return
		}
		if key, ok := directoryRoute(md.S3, rel); ok {
			d.routeToAssets(req, md, key)
			return
		}
		if md.Custom404 != "" {
			d.routeToAssets(req, md, strings.TrimPrefix(md.Custom404, "/"))
			return
		}
	}

	if md.Image != nil && md.Image.Route != "" && strings.HasPrefix(rel, md.Image.Route) {
		req.SetHeader(headerForwardedHost, req.Host())
		req.SetHeader(headerCacheKey, ImageCacheKey(req))
		req.Origin = &Origin{
			Type:      OriginCustom,
			Domain:    md.Image.Host,
			Overrides: overrides(md),
		}
		return
	}

	if len(md.Servers) > 0 {
		d.routeToServer(req, md)
	}
}

// probeAssets tries the literal-file candidates for a de-based path: the
// path itself, then with ".html", then "/index.html" (just "index.html"
// after a trailing slash). The first key present in the asset set wins.
func probeAssets(assets *routetable.SiteAssets, rel string) (string, bool) {
	base := strings.TrimPrefix(rel, "/")

	var candidates []string
	if base == "" || strings.HasSuffix(base, "/") {
		candidates = []string{base + "index.html"}
	} else {
		candidates = []string{base, base + ".html", base + "/index.html"}
	}

	for _, candidate := range candidates {
		for _, file := range assets.Files {
			if file == candidate {
				return candidate, true
			}
		}
	}
	return "", false
}

// directoryRoute serves paths under a coarse directory route. Paths with a
// file extension pass through unchanged (the directory's files are not
// enumerated in metadata); extensionless paths are treated as a directory
// index request.
func directoryRoute(assets *routetable.SiteAssets, rel string) (string, bool) {
	for _, dir := range assets.Routes {
		if !strings.HasPrefix(rel, dir) {
			continue
		}
		key := strings.TrimPrefix(rel, "/")
		switch {
		case strings.HasSuffix(key, "/"):
			key += "index.html"
		case path.Ext(key) == "":
			key += ".html"
		}
		return key, true
	}
	return "", false
}

func (d *Dispatcher) routeToAssets(req *Request, md *routetable.Metadata, key string) {
	dir := strings.Trim(md.S3.Dir, "/")
	if dir != "" {
		req.URI = "/" + dir + "/" + key
	} else {
		req.URI = "/" + key
	}
	// Storage origins never see cookies.
	req.Cookies = map[string]string{}
	req.Origin = &Origin{
		Type:      OriginS3,
		Domain:    md.S3.Domain,
		Overrides: overrides(md),
	}
}

// routeToServer forwards to the nearest regional server origin, injecting
// forwarded-host, viewer geo, and cache-key headers.
func (d *Dispatcher) routeToServer(req *Request, md *routetable.Metadata) {
	lat, lon, haveCoords := viewerCoordinates(req)
	server := nearestServer(md.Servers, lat, lon, haveCoords)

	req.SetHeader(headerForwardedHost, req.Host())
	if city := req.Header(headerViewerCity); city != "" {
		req.SetHeader(headerGeoCity, city)
	}
	if country := req.Header(headerViewerCountry); country != "" {
		req.SetHeader(headerGeoCountry, country)
	}
	if region := req.Header(headerViewerRegion); region != "" {
		req.SetHeader(headerGeoRegion, region)
	}
	if haveCoords {
		req.SetHeader(headerGeoLatitude, req.Header(headerViewerLatitude))
		req.SetHeader(headerGeoLongitude, req.Header(headerViewerLongitude))
	}
	req.SetHeader(headerCacheKey, CacheKey(req))

	req.Origin = &Origin{
		Type:      OriginCustom,
		Domain:    server.Host,
		Overrides: overrides(md),
	}
}
