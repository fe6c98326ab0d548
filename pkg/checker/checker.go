// Package checker vets requests before they are dispatched. ESI answers
// structurally valid requests for nonexistent entities with errors that
// still count against the error budget, so catching a bad type_id or a
// known-broken route locally is cheaper than letting the server reject it.
package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/evetools-dev/eve-tools/pkg/cache"
	"github.com/evetools-dev/eve-tools/pkg/sde"
)

// DefaultBaseURL is where live confirmation lookups go.
const DefaultBaseURL = "https://esi.evetech.net/latest"

// typeCheckTTL keeps confirmed type ids for a month. Published types almost
// never flip back to unpublished.
const typeCheckTTL = 30 * 24 * time.Hour

// typeCheckIdentity versions the cached verdicts; bump it when the rule
// changes meaning.
const typeCheckIdentity = "check_type_id@v1"

// liveLookupAttempts bounds the 502 retries of a confirmation lookup.
const liveLookupAttempts = 3

// Request is the slice of a composed request the checker needs. Implemented
// by the client's request type; the checker never learns about the rest.
type Request interface {
	// EndpointKey returns the parameterized endpoint path.
	EndpointKey() string
	// Method returns the HTTP method.
	Method() string
	// DeclaresParam reports whether the endpoint declares the named
	// parameter, in any location.
	DeclaresParam(name string) bool
	// Argument returns the caller-supplied value for the named parameter.
	Argument(name string) (any, bool)
	// MarkBlocked records that admission rejected the request.
	MarkBlocked(reason string)
}

// InvalidParamError reports an argument the checker rejected.
type InvalidParamError struct {
	Param  string
	Value  any
	Reason string
}

func (e *InvalidParamError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Param, e.Value, e.Reason)
}

// EndpointDownError reports a route the health board marks red.
type EndpointDownError struct {
	Method string
	Route  string
	Status string
}

func (e *EndpointDownError) Error() string {
	return fmt.Sprintf("endpoint %s %s is %s", e.Method, e.Route, e.Status)
}

// Checker runs admission rules against composed requests. Verdicts from
// expensive rules are cached so repeated fan-outs over the same ids stay
// local.
type Checker struct {
	sdeDict sde.Dictionary
	store   cache.Store
	board   *StatusBoard
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// Config wires a Checker.
type Config struct {
	// SDE resolves type ids against the static data export. Optional; when
	// nil every type id goes straight to live confirmation.
	SDE sde.Dictionary
	// Store caches confirmation verdicts. Optional.
	Store cache.Store
	// Board supplies route health. Optional; when nil the rule is skipped.
	Board *StatusBoard
	// HTTPClient performs confirmation lookups. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
	// BaseURL overrides the confirmation lookup base. Defaults to
	// DefaultBaseURL.
	BaseURL string
	Logger  zerolog.Logger
}

// New creates a Checker.
func New(cfg Config) *Checker {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Checker{
		sdeDict: cfg.SDE,
		store:   cfg.Store,
		board:   cfg.Board,
		client:  cfg.HTTPClient,
		baseURL: cfg.BaseURL,
		logger:  cfg.Logger.With().Str("component", "checker").Logger(),
	}
}

// Check runs every admission rule against the request. On the first
// rejection it marks the request blocked and returns the rule's error; a nil
// return admits the request.
func (c *Checker) Check(ctx context.Context, req Request) error {
	if err := c.checkRouteHealth(ctx, req); err != nil {
		c.reject(req, err)
		return err
	}
	if err := c.checkTypeID(ctx, req); err != nil {
		c.reject(req, err)
		return err
	}
	return nil
}

func (c *Checker) reject(req Request, err error) {
	req.MarkBlocked(err.Error())
	c.logger.Warn().
		Str("endpoint", req.EndpointKey()).
		Str("method", req.Method()).
		Err(err).
		Msg("request blocked by admission check")
	checksRejected.Inc()
}

// checkRouteHealth blocks requests to routes the health board marks red.
func (c *Checker) checkRouteHealth(ctx context.Context, req Request) error {
	if c.board == nil {
		return nil
	}
	status := c.board.Status(ctx, req.Method(), req.EndpointKey())
	if status == StatusRed {
		return &EndpointDownError{Method: req.Method(), Route: req.EndpointKey(), Status: status}
	}
	if status == StatusYellow {
		c.logger.Debug().
			Str("endpoint", req.EndpointKey()).
			Msg("route health degraded, admitting anyway")
	}
	return nil
}

// checkTypeID validates a type_id argument when the endpoint declares one.
// The static data export settles most cases without network traffic: an
// absent or unpublished type is rejected outright. A published type still
// gets one live confirmation, because the export on disk can trail the
// server; the verdict is cached for a month.
func (c *Checker) checkTypeID(ctx context.Context, req Request) error {
	if !req.DeclaresParam("type_id") {
		return nil
	}
	raw, ok := req.Argument("type_id")
	if !ok || raw == nil {
		// Optional and absent: nothing to vet.
		return nil
	}

	typeID, err := toInt64(raw)
	if err != nil {
		return &InvalidParamError{Param: "type_id", Value: raw, Reason: "not an integer"}
	}
	if typeID <= 0 {
		return &InvalidParamError{Param: "type_id", Value: typeID, Reason: "must be positive"}
	}

	if c.sdeDict != nil {
		info, found := c.sdeDict.LookupType(typeID)
		if !found {
			return &InvalidParamError{Param: "type_id", Value: typeID, Reason: "unknown type"}
		}
		if !info.Published {
			return &InvalidParamError{Param: "type_id", Value: typeID, Reason: "type not published"}
		}
	}

	published, err := c.confirmTypePublished(ctx, typeID)
	if err != nil {
		return fmt.Errorf("confirm type_id %d: %w", typeID, err)
	}
	if !published {
		return &InvalidParamError{Param: "type_id", Value: typeID, Reason: "type not published"}
	}
	return nil
}

// confirmTypePublished asks the server whether the type exists and is
// published, going through the verdict cache first.
func (c *Checker) confirmTypePublished(ctx context.Context, typeID int64) (bool, error) {
	key := cache.Key(typeCheckIdentity, typeID)

	if c.store != nil {
		if data, err := c.store.Get(ctx, key); err == nil {
			var published bool
			if err := json.Unmarshal(data, &published); err == nil {
				return published, nil
			}
		}
	}

	published, err := c.lookupTypePublished(ctx, typeID)
	if err != nil {
		return false, err
	}

	if c.store != nil {
		data, _ := json.Marshal(published)
		if err := c.store.Set(ctx, key, data, typeCheckTTL); err != nil {
			c.logger.Warn().Err(err).Int64("type_id", typeID).Msg("failed to cache type verdict")
		}
	}
	return published, nil
}

// lookupTypePublished fetches /universe/types/{id}/ once, retrying only the
// 502s the gateway is known to throw under load. A 404 is a definitive "does
// not exist".
func (c *Checker) lookupTypePublished(ctx context.Context, typeID int64) (bool, error) {
	url := fmt.Sprintf("%s/universe/types/%d/?datasource=tranquility", c.baseURL, typeID)

	var lastErr error
	for attempt := 0; attempt < liveLookupAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return false, err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return false, err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			var payload struct {
				Published bool `json:"published"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return false, fmt.Errorf("decode type lookup: %w", err)
			}
			return payload.Published, nil
		case resp.StatusCode == http.StatusNotFound:
			return false, nil
		case resp.StatusCode == http.StatusBadGateway:
			lastErr = fmt.Errorf("type lookup returned 502")
			continue
		default:
			return false, fmt.Errorf("type lookup returned %d", resp.StatusCode)
		}
	}
	return false, fmt.Errorf("type lookup exhausted retries: %w", lastErr)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, errors.New("not an integer")
		}
		return int64(n), nil
	default:
		return 0, errors.New("not an integer")
	}
}
