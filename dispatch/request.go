// Package dispatch implements the per-request edge routing program.
//
// A Dispatcher is a read-only consumer of a routing table written at deploy
// time. Each invocation is a pure function of (route table, metadata, request
// host/path/headers): it evaluates every registered route against the
// incoming request, picks the most specific match, and mutates the in-flight
// request (URI rewrite, origin selection, header injection) before it is
// forwarded. Lookup or parse failures never fail the request; the dispatcher
// fails open and the request proceeds to the default origin.
package dispatch

import (
	"strings"

	"github.com/edgecraft/edgecraft/routetable"
)

// Request is the mutable in-flight edge request. Header and cookie names are
// lowercased; values are the first header value, matching the edge runtime's
// single-value view.
type Request struct {
	Method      string
	URI         string
	QueryString string
	Headers     map[string]string
	Cookies     map[string]string

	// Origin is the override target chosen by dispatch. Nil means the
	// request falls through to the distribution's default origin.
	Origin *Origin
}

// Header returns the named header value, or "" when absent.
func (r *Request) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// SetHeader sets a header, lowercasing its name.
func (r *Request) SetHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = map[string]string{}
	}
	r.Headers[strings.ToLower(name)] = value
}

// Host returns the request's Host header.
func (r *Request) Host() string {
	return r.Header("host")
}

// OriginType discriminates how an override origin is reached.
type OriginType string

const (
	// OriginCustom forwards to an arbitrary HTTPS host.
	OriginCustom OriginType = "custom"
	// OriginS3 forwards to an object-storage backend. Storage origins must
	// not see or forward cookies.
	OriginS3 OriginType = "s3"
)

// Origin is the resolved forwarding target for a dispatched request.
type Origin struct {
	Type      OriginType
	Domain    string
	Overrides routetable.OriginOverrides
}
