package dispatch

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/edgecraft/edgecraft/routetable"
)

// Dispatcher evaluates one request against a routing table.
type Dispatcher struct {
	kv  routetable.Getter
	log *zap.Logger
}

type Option func(*Dispatcher)

func WithLogger(log *zap.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

func New(kv routetable.Getter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		kv:  kv,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs the full per-request pipeline: load routes, match, load
// metadata, apply. The request is mutated in place. Every failure mode
// degrades to "leave the request untouched"; Dispatch never returns an error
// because there is no retry budget at this layer.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) {
	routes := d.loadRoutes(ctx)
	if len(routes) == 0 {
		return
	}

	match, ok := MatchRoute(routes, req.Host(), req.URI)
	if !ok {
		return
	}

	raw, err := d.kv.Get(ctx, routetable.Key(match.Namespace, routetable.MetadataKey))
	if err != nil {
		d.log.Warn("route metadata lookup failed, failing open",
			zap.String("namespace", match.Namespace),
			zap.Error(err))
		return
	}
	md, err := routetable.ParseMetadata(raw)
	if err != nil {
		d.log.Warn("route metadata is malformed, failing open",
			zap.String("namespace", match.Namespace),
			zap.Error(err))
		return
	}

	if md.Rewrite != nil {
		req.URI = applyRewrite(req.URI, md.Rewrite)
	}

	switch match.Kind {
	case routetable.RouteKindURL:
		d.applyURL(req, md)
	case routetable.RouteKindBucket:
		d.applyBucket(req, md)
	case routetable.RouteKindSite:
		d.applySite(req, md)
	}
}

// loadRoutes fetches the route list, fanning out over part keys when it is
// chunked. Any fetch failure yields an empty list.
func (d *Dispatcher) loadRoutes(ctx context.Context) []routetable.RouteDescriptor {
	value, err := d.kv.Get(ctx, routetable.RoutesKey)
	if err != nil {
		d.log.Debug("route list lookup failed, failing open", zap.Error(err))
		return nil
	}

	if parts, ok := routetable.ParseChunkSentinel(value); ok {
		chunks := make([]string, parts)
		var wg sync.WaitGroup
		var failed atomic.Bool
		for i := 0; i < parts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				chunk, err := d.kv.Get(ctx, routetable.ChunkKey(i))
				if err != nil {
					failed.Store(true)
					return
				}
				chunks[i] = chunk
			}(i)
		}
		wg.Wait()
		if failed.Load() {
			d.log.Debug("route list chunk lookup failed, failing open")
			return nil
		}
		value = strings.Join(chunks, "")
	}

	return routetable.ParseRoutes(value)
}

// MatchRoute selects the best route for a host and path. Among all matching
// descriptors the winner has the longest host pattern, ties broken by the
// longest path prefix; equal specificity keeps the earliest entry. Priority
// is computed here, at match time, never at write time.
func MatchRoute(routes []routetable.RouteDescriptor, host, uri string) (routetable.RouteDescriptor, bool) {
	var best routetable.RouteDescriptor
	found := false
	for _, candidate := range routes {
		if !hostMatches(candidate.Host, host) {
			continue
		}
		if !strings.HasPrefix(uri, candidate.Path) {
			continue
		}
		if !found || moreSpecific(candidate, best) {
			best = candidate
			found = true
		}
	}
	return best, found
}

func moreSpecific(a, b routetable.RouteDescriptor) bool {
	if len(a.Host) != len(b.Host) {
		return len(a.Host) > len(b.Host)
	}
	return len(a.Path) > len(b.Path)
}

// hostMatches tests a compiled host fragment against the request host: empty
// fragment is the match-all wildcard, plain fragments compare exactly, and
// fragments carrying regex syntax (escapes from compilation, expanded globs)
// match anchored.
func hostMatches(fragment, host string) bool {
	if fragment == "" {
		return true
	}
	if fragment == host {
		return true
	}
	if !strings.ContainsAny(fragment, `\*`) {
		return false
	}
	re, err := regexp.Compile("^" + fragment + "$")
	if err != nil {
		return false
	}
	return re.MatchString(host)
}

// applyRewrite replaces the first match of the rewrite regex in the path,
// expanding $1-style references. A rewrite that does not compile or does not
// match leaves the path unchanged.
func applyRewrite(uri string, rw *routetable.Rewrite) string {
	re, err := regexp.Compile(rw.Regex)
	if err != nil {
		return uri
	}
	m := re.FindStringSubmatchIndex(uri)
	if m == nil {
		return uri
	}
	out := make([]byte, 0, len(uri))
	out = append(out, uri[:m[0]]...)
	out = re.ExpandString(out, rw.To, uri, m)
	out = append(out, uri[m[1]:]...)
	return string(out)
}

func (d *Dispatcher) applyURL(req *Request, md *routetable.Metadata) {
	if md.Host == "" {
		return
	}
	req.SetHeader("x-forwarded-host", req.Host())
	req.Origin = &Origin{
		Type:      OriginCustom,
		Domain:    md.Host,
		Overrides: overrides(md),
	}
}

func (d *Dispatcher) applyBucket(req *Request, md *routetable.Metadata) {
	if md.Bucket == "" {
		return
	}
	// Storage origins never see cookies.
	req.Cookies = map[string]string{}
	req.Origin = &Origin{
		Type:      OriginS3,
		Domain:    md.Bucket,
		Overrides: overrides(md),
	}
}

func overrides(md *routetable.Metadata) routetable.OriginOverrides {
	if md.Origin == nil {
		return routetable.OriginOverrides{}
	}
	return *md.Origin
}
