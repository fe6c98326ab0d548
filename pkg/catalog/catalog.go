// Package catalog holds static per-endpoint metadata for the ESI API:
// accepted parameters, their locations and defaults, and the OAuth scopes an
// endpoint requires. The catalog is a pure lookup table with no I/O.
package catalog

import (
	"errors"
	"fmt"
)

// ErrUnknownEndpoint is returned when an endpoint key is not registered.
var ErrUnknownEndpoint = errors.New("unknown endpoint")

// ParamIn is the location of a parameter within a request.
type ParamIn string

const (
	// InPath parameters appear as {name} placeholders in the endpoint key.
	InPath ParamIn = "path"

	// InQuery parameters are appended to the URL query string.
	InQuery ParamIn = "query"

	// InHeader parameters are sent as HTTP request headers.
	InHeader ParamIn = "header"
)

// Param describes one accepted parameter of an endpoint.
//
// Path parameters are always required and never carry a default.
type Param struct {
	Name     string
	In       ParamIn
	Required bool
	Type     string
	Default  any
}

// Endpoint describes one ESI route: its templated path, HTTP method,
// required OAuth scopes, and accepted parameters in declaration order.
// Endpoints are immutable after registration.
type Endpoint struct {
	// Key is the templated path identifying the route,
	// e.g. "/markets/{region_id}/orders/".
	Key string

	// Method is the declared HTTP method, lowercase ("get").
	Method string

	// Scopes lists the OAuth scopes the endpoint requires, empty for
	// public endpoints.
	Scopes []string

	// Params are the accepted parameters in declaration order.
	Params []Param
}

// Param returns the endpoint's parameter with the given name.
func (e Endpoint) Param(name string) (Param, bool) {
	for _, p := range e.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Describe returns the descriptor for an endpoint key.
func Describe(key string) (Endpoint, error) {
	ep, ok := registry[key]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownEndpoint, key)
	}
	return ep, nil
}

// Keys returns all registered endpoint keys.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	return keys
}
