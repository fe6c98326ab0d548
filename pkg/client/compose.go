package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/evetools-dev/eve-tools/pkg/cache"
	"github.com/evetools-dev/eve-tools/pkg/catalog"
)

// compose turns an endpoint key and caller arguments into a dispatchable
// request. The stages run in a fixed order: catalog lookup, method check,
// argument routing, credential attachment, parameter fill, identity hash,
// conditional header, URL resolution. Every stage failure is a caller error
// and is never retried.
func (c *Client) compose(ctx context.Context, method, key string, args Args) (*Request, error) {
	endpoint, err := catalog.Describe(key)
	if err != nil {
		return nil, err
	}
	if err := checkMethod(method, endpoint); err != nil {
		return nil, err
	}

	cname, headers, plain, err := splitArgs(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	for name := range plain {
		if _, ok := endpoint.Param(name); !ok {
			return nil, fmt.Errorf("%w: %q not declared by %s", ErrUnknownParam, name, key)
		}
	}

	req := &Request{
		endpoint: endpoint,
		method:   method,
		header:   make(http.Header),
		query:    make(url.Values),
		path:     make(map[string]string),
		values:   make(map[string]any),
	}
	req.header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.header.Set("User-Agent", c.cfg.UserAgent)
	}

	// A caller-supplied Authorization header wins over the token store.
	if len(endpoint.Scopes) > 0 && headers["Authorization"] == "" {
		if err := c.attachToken(ctx, req, cname); err != nil {
			return nil, fmt.Errorf("authorize %s: %w", key, err)
		}
	}

	if err := fillParams(req, plain); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	for name, value := range headers {
		req.header.Set(name, value)
	}

	req.identity = cache.RequestIdentity(key, req.values)
	if method == http.MethodGet && c.cache != nil {
		if entry, ok := cache.GetETag(ctx, c.cache, req.identity); ok {
			req.etag = entry.ETag
			req.header.Set("If-None-Match", entry.ETag)
			cache.ConditionalRequestsSent.Inc()
		}
	}

	req.url = resolveURL(c.cfg.BaseURL, endpoint.Key, req.path, req.query)
	return req, nil
}

// checkMethod enforces the declared method. The catalog declares methods
// lowercase, swagger style. HEAD piggybacks on GET endpoints: same route, no
// body, useful for reading X-Pages.
func checkMethod(method string, endpoint catalog.Endpoint) error {
	declared := strings.ToUpper(endpoint.Method)
	if method == declared {
		return nil
	}
	if method == http.MethodHead && declared == http.MethodGet {
		return nil
	}
	return fmt.Errorf("%w: %s %s serves %s", ErrUnsupportedMethod, method, endpoint.Key, declared)
}

// splitArgs separates the reserved keys from plain parameter arguments and
// merges the nested params map, rejecting duplicates.
func splitArgs(args Args) (cname string, headers map[string]string, plain map[string]any, err error) {
	plain = make(map[string]any)
	headers = make(map[string]string)

	var nested Args
	for name, value := range args {
		switch name {
		case argCName:
			s, ok := value.(string)
			if !ok {
				return "", nil, nil, fmt.Errorf("cname must be a string, got %T", value)
			}
			cname = s
		case argParams:
			switch v := value.(type) {
			case Args:
				nested = v
			case map[string]any:
				nested = v
			default:
				return "", nil, nil, fmt.Errorf("params must be a map, got %T", value)
			}
		case argHeaders:
			h, ok := value.(map[string]string)
			if !ok {
				return "", nil, nil, fmt.Errorf("headers must be a map[string]string, got %T", value)
			}
			headers = h
		default:
			plain[name] = value
		}
	}

	for name, value := range nested {
		if _, exists := plain[name]; exists {
			return "", nil, nil, fmt.Errorf("%w: %q", ErrDuplicateParam, name)
		}
		plain[name] = value
	}
	return cname, headers, plain, nil
}

// attachToken resolves an application for the endpoint's scopes, obtains a
// live token and sets the Authorization header.
func (c *Client) attachToken(ctx context.Context, req *Request, cname string) error {
	store, err := c.tokenStore(req.endpoint.Scopes)
	if err != nil {
		return err
	}
	tok, err := store.Get(ctx, cname)
	if err != nil {
		return err
	}
	req.token = tok
	req.header.Set("Authorization", "Bearer "+tok.AccessToken)
	return nil
}

// fillParams routes every declared parameter to its location. Required
// parameters must resolve from an argument, a default, or, for
// character_id, the attached token.
func fillParams(req *Request, plain map[string]any) error {
	for _, param := range req.endpoint.Params {
		value, supplied := plain[param.Name]
		if !supplied || value == nil {
			switch {
			case param.Name == "character_id" && req.token != nil:
				value = req.token.CharacterID
			case param.Default != nil:
				value = param.Default
			case param.Required:
				return fmt.Errorf("%w: %q", ErrMissingParam, param.Name)
			default:
				continue
			}
		}

		formatted := formatValue(value)
		req.values[param.Name] = value
		switch param.In {
		case catalog.InPath:
			req.path[param.Name] = formatted
		case catalog.InQuery:
			req.query.Set(param.Name, formatted)
		case catalog.InHeader:
			req.header.Set(param.Name, formatted)
		}
	}
	return nil
}

// formatValue renders an argument for the wire. Slices become comma joined
// lists, the way ESI expects multi-valued query parameters.
func formatValue(v any) string {
	switch s := v.(type) {
	case []string:
		return strings.Join(s, ",")
	case []any:
		parts := make([]string, len(s))
		for i, e := range s {
			parts[i] = fmt.Sprintf("%v", e)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// resolveURL substitutes path parameters into the endpoint key and appends
// the encoded query.
func resolveURL(base, key string, path map[string]string, query url.Values) string {
	resolved := key
	for name, value := range path {
		resolved = strings.ReplaceAll(resolved, "{"+name+"}", url.PathEscape(value))
	}
	full := strings.TrimSuffix(base, "/") + resolved
	if encoded := query.Encode(); encoded != "" {
		full += "?" + encoded
	}
	return full
}
