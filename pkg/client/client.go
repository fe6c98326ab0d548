// Package client is the request orchestration engine for the EVE Online ESI
// API. It composes requests from a static endpoint catalog, vets them
// through admission checks, attaches OAuth credentials, dispatches with
// retries under a shared error budget, and fans out concurrent request
// families.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/evetools-dev/eve-tools/pkg/cache"
	"github.com/evetools-dev/eve-tools/pkg/checker"
	"github.com/evetools-dev/eve-tools/pkg/ratelimit"
	"github.com/evetools-dev/eve-tools/pkg/token"
)

// DefaultBaseURL routes requests to the Tranquility cluster's latest route
// version.
const DefaultBaseURL = "https://esi.evetech.net/latest"

// Config wires a Client. Zero values fall back to the defaults documented
// per field.
type Config struct {
	// BaseURL is the ESI root. Defaults to DefaultBaseURL.
	BaseURL string

	// UserAgent identifies the consumer to CCP. Strongly recommended.
	UserAgent string

	// Attempts bounds the retry loop per request. Defaults to 3.
	Attempts int

	// AdaptiveThreshold is the error budget floor below which
	// PolicyAdaptive escalates failures to errors. Defaults to 5.
	AdaptiveThreshold int

	// MaxConcurrency bounds in-flight requests during a fan-out. Defaults
	// to 100, matching the default error budget.
	MaxConcurrency int

	// HTTPClient performs the exchanges. Defaults to a client with a 30s
	// timeout.
	HTTPClient *http.Client

	// Cache backs conditional requests and checker verdicts. Optional;
	// without it every response is fetched in full.
	Cache cache.Store

	// Apps and Issuer supply OAuth credentials for scoped endpoints.
	// Optional; unauthenticated endpoints work without them.
	Apps   *token.Applications
	Issuer token.Issuer

	// TokenPath is the token document shared by all applications.
	TokenPath string

	// Checker vets requests before dispatch. Optional.
	Checker *checker.Checker

	Logger zerolog.Logger
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Attempts:          3,
		AdaptiveThreshold: 5,
		MaxConcurrency:    100,
	}
}

// Client orchestrates ESI requests. One Client shares a single error budget
// and session record across everything it dispatches; create one per
// process. All methods are safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      cache.Store
	budget     *ratelimit.Budget
	checker    *checker.Checker
	apps       *token.Applications
	issuer     token.Issuer
	logger     zerolog.Logger
	session    SessionRecord

	storeMu sync.Mutex
	stores  map[string]*token.Store

	hookMu     sync.RWMutex
	formatters map[string]Hook
	persisters map[string]Hook
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.AdaptiveThreshold <= 0 {
		cfg.AdaptiveThreshold = 5
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 100
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxConnsPerHost:     100,
				MaxIdleConnsPerHost: 100,
			},
		}
	}

	logger := cfg.Logger.With().Str("component", "esi_client").Logger()
	return &Client{
		cfg:        cfg,
		httpClient: cfg.HTTPClient,
		cache:      cfg.Cache,
		budget:     ratelimit.NewBudget(logger),
		checker:    cfg.Checker,
		apps:       cfg.Apps,
		issuer:     cfg.Issuer,
		logger:     logger,
		stores:     make(map[string]*token.Store),
		formatters: make(map[string]Hook),
		persisters: make(map[string]Hook),
	}, nil
}

// Get performs a GET against the endpoint. PolicyDefault raises on failure.
func (c *Client) Get(ctx context.Context, endpointKey string, args Args) (*Response, error) {
	return c.Request(ctx, http.MethodGet, endpointKey, PolicyDefault, args)
}

// Head performs a HEAD against a GET endpoint, most usefully to read the
// X-Pages header without fetching a page.
func (c *Client) Head(ctx context.Context, endpointKey string, args Args) (*Response, error) {
	return c.Request(ctx, http.MethodHead, endpointKey, PolicyDefault, args)
}

// Request composes and dispatches one request under the given policy.
func (c *Client) Request(ctx context.Context, method, endpointKey string, policy Policy, args Args) (*Response, error) {
	req, err := c.compose(ctx, method, endpointKey, args)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, req, policy.resolve(false))
}

// Session returns the client's session record.
func (c *Client) Session() *SessionRecord {
	return &c.session
}

// Budget reports the error budget remaining in the current window.
func (c *Client) Budget() int {
	return c.budget.Remaining()
}

// Close persists every dirty token store.
func (c *Client) Close() error {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	var errs []error
	for _, store := range c.stores {
		if err := store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// tokenStore returns the store for an application covering the scopes,
// creating it on first use. Stores are shared per client id so every
// request sees the same tokens.
func (c *Client) tokenStore(scopes []string) (*token.Store, error) {
	if c.apps == nil || c.issuer == nil {
		return nil, fmt.Errorf("endpoint requires scopes %v but no applications are configured", scopes)
	}
	app, err := c.apps.SearchScopes(scopes)
	if err != nil {
		return nil, err
	}

	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	if store, ok := c.stores[app.ClientID]; ok {
		return store, nil
	}
	store, err := token.NewStore(app, c.cfg.TokenPath, c.issuer, c.logger)
	if err != nil {
		return nil, err
	}
	c.stores[app.ClientID] = store
	return store, nil
}
