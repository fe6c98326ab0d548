package client

import (
	"errors"
	"fmt"
)

// Composition errors. All of them mean the call site is wrong, not the
// server, so they are never retried.
var (
	// ErrUnsupportedMethod is returned when the endpoint does not serve the
	// requested HTTP method.
	ErrUnsupportedMethod = errors.New("method not supported by endpoint")

	// ErrMissingParam is returned when a required parameter has neither an
	// argument nor a default.
	ErrMissingParam = errors.New("missing required parameter")

	// ErrDuplicateParam is returned when the same parameter is supplied both
	// as a top-level argument and inside the params map.
	ErrDuplicateParam = errors.New("parameter supplied twice")

	// ErrUnknownParam is returned for an argument the endpoint does not
	// declare. Catches typos before they turn into server-side 400s.
	ErrUnknownParam = errors.New("unknown parameter")
)

// ResponseError is the raised form of a failed request: the retry engine
// exhausted its attempts and the policy asked for an error.
type ResponseError struct {
	Endpoint string
	Method   string
	Status   int
	Reason   string
	Body     string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s %s failed with %d %s", e.Method, e.Endpoint, e.Status, e.Reason)
}

// BlockedError is the raised form of an admission rejection.
type BlockedError struct {
	Endpoint string
	Reason   string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("request to %s blocked: %s", e.Endpoint, e.Reason)
}
