package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// StatusBlocked is the sentinel status of a response envelope for a request
// that admission rejected before dispatch. No HTTP exchange happened.
const StatusBlocked = -1

// Response is the envelope every request resolves to. It carries the
// decoded rate limit state alongside the payload so callers and the fan-out
// machinery can reason about the error budget without reparsing headers.
type Response struct {
	// Status is the HTTP status code, or StatusBlocked.
	Status int

	// Method and Endpoint identify the request this envelope answers.
	Method   string
	Endpoint string

	// Identity is the stable request identity, shared with the conditional
	// cache. Useful as a storage key in persister hooks.
	Identity string

	// Headers are the response headers. Nil for blocked requests.
	Headers http.Header

	// Data is the raw JSON payload. For 304 responses it is the payload
	// replayed from the conditional cache.
	Data json.RawMessage

	// Expires is the server-declared payload expiry, zero when absent.
	Expires time.Time

	// Reason is the HTTP status text, or the admission rejection reason.
	Reason string

	// ErrorRemain and ErrorReset mirror the error budget headers as of this
	// response. Defaults are assumed when the headers are missing.
	ErrorRemain int
	ErrorReset  int

	// FromCache marks a 304 whose payload was replayed from the
	// conditional cache.
	FromCache bool

	// Blocked marks an envelope synthesized for an admission rejection.
	Blocked bool

	// Formatted and Stored record which post-processing hooks ran.
	Formatted bool
	Stored    bool
}

// OK reports whether the envelope carries a usable payload.
func (r *Response) OK() bool {
	return r.Status == http.StatusOK || (r.Status == http.StatusNotModified && r.FromCache)
}

// Unmarshal decodes the payload into v.
func (r *Response) Unmarshal(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("response for %s has no payload", r.Endpoint)
	}
	return json.Unmarshal(r.Data, v)
}

// Pages returns the X-Pages header value, or 1 when absent.
func (r *Response) Pages() int {
	if r.Headers == nil {
		return 1
	}
	var pages int
	if _, err := fmt.Sscanf(r.Headers.Get("X-Pages"), "%d", &pages); err != nil || pages < 1 {
		return 1
	}
	return pages
}
