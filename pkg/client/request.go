package client

import (
	"net/http"
	"net/url"

	"github.com/evetools-dev/eve-tools/pkg/catalog"
	"github.com/evetools-dev/eve-tools/pkg/token"
)

// Args carries the caller's arguments for one request, keyed by parameter
// name. Two keys are special:
//
//   - "params": a nested Args of additional query parameters. Supplying a
//     parameter both at the top level and inside params is an error.
//   - "headers": a map[string]string of extra request headers.
//
// The key "cname" selects which character's token authenticates the request;
// it defaults to whichever token the store holds first.
type Args map[string]any

// Reserved argument keys.
const (
	argParams  = "params"
	argHeaders = "headers"
	argCName   = "cname"
)

// Request is a fully composed request: catalog metadata resolved, arguments
// validated and routed to their locations, credentials attached, conditional
// headers set. It is built by the composer and consumed once by the
// transport.
type Request struct {
	endpoint catalog.Endpoint
	method   string

	url    string
	header http.Header
	query  url.Values
	path   map[string]string

	// values holds every argument that shaped the request, defaults
	// included, for identity hashing and admission checks.
	values map[string]any

	token    *token.Token
	identity string
	etag     string

	blocked bool
	reason  string
}

// EndpointKey returns the parameterized endpoint path.
func (r *Request) EndpointKey() string { return r.endpoint.Key }

// Method returns the HTTP method.
func (r *Request) Method() string { return r.method }

// URL returns the resolved request URL including the query string.
func (r *Request) URL() string { return r.url }

// Header returns the composed request headers.
func (r *Request) Header() http.Header { return r.header }

// Identity returns the stable identity of the request, shared by retries and
// by conditional cache entries.
func (r *Request) Identity() string { return r.identity }

// DeclaresParam reports whether the endpoint declares the named parameter.
func (r *Request) DeclaresParam(name string) bool {
	_, ok := r.endpoint.Param(name)
	return ok
}

// Argument returns the effective value of the named parameter, defaults
// included.
func (r *Request) Argument(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// MarkBlocked records an admission rejection on the request.
func (r *Request) MarkBlocked(reason string) {
	r.blocked = true
	r.reason = reason
}

// Blocked reports whether admission rejected the request.
func (r *Request) Blocked() bool { return r.blocked }

// blockedResponse synthesizes the envelope for a rejected request.
func (r *Request) blockedResponse(errorRemain, errorReset int) *Response {
	return &Response{
		Status:      StatusBlocked,
		Method:      r.method,
		Endpoint:    r.endpoint.Key,
		Identity:    r.identity,
		Reason:      r.reason,
		Blocked:     true,
		ErrorRemain: errorRemain,
		ErrorReset:  errorReset,
	}
}
