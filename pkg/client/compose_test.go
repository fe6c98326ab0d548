package client

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/evetools-dev/eve-tools/pkg/cache"
	"github.com/evetools-dev/eve-tools/pkg/catalog"
	"github.com/evetools-dev/eve-tools/pkg/token"
)

type grantIssuer struct {
	grant token.Grant
}

func (g *grantIssuer) Issue(_ context.Context, _ token.Application) (token.Grant, error) {
	return g.grant, nil
}

func (g *grantIssuer) Refresh(_ context.Context, _ token.Application, _ string) (token.Grant, error) {
	return token.Grant{AccessToken: "refreshed"}, nil
}

func newTestClient(t *testing.T, mutate func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.UserAgent = "eve-tools-test"
	cfg.Logger = zerolog.Nop()
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// authedTestClient wires a registered application and a scripted issuer so
// scoped endpoints can compose.
func authedTestClient(t *testing.T, characterID int64) *Client {
	t.Helper()
	apps := &token.Applications{}
	apps.Add(token.Application{
		ClientID: "test-client",
		Scope:    "esi-markets.read_character_orders.v1 esi-markets.structure_markets.v1",
	})
	issuer := &grantIssuer{grant: token.Grant{
		AccessToken:   "test-access",
		RefreshToken:  "test-refresh",
		CharacterName: "Test Pilot",
		CharacterID:   characterID,
	}}
	return newTestClient(t, func(cfg *Config) {
		cfg.Apps = apps
		cfg.Issuer = issuer
		cfg.TokenPath = filepath.Join(t.TempDir(), "tokens.json")
	})
}

func TestCompose_UnknownEndpoint(t *testing.T) {
	c := newTestClient(t, nil)

	_, err := c.compose(context.Background(), http.MethodGet, "/no/such/route/", nil)
	if !errors.Is(err, catalog.ErrUnknownEndpoint) {
		t.Errorf("compose() error = %v, want ErrUnknownEndpoint", err)
	}
}

func TestCompose_MethodCheck(t *testing.T) {
	c := newTestClient(t, nil)
	ctx := context.Background()

	_, err := c.compose(ctx, http.MethodPost, "/status/", nil)
	if !errors.Is(err, ErrUnsupportedMethod) {
		t.Errorf("POST error = %v, want ErrUnsupportedMethod", err)
	}

	// HEAD rides on any GET endpoint.
	if _, err := c.compose(ctx, http.MethodHead, "/status/", nil); err != nil {
		t.Errorf("HEAD error = %v, want nil", err)
	}
}

func TestCompose_MissingRequiredParam(t *testing.T) {
	c := newTestClient(t, nil)

	_, err := c.compose(context.Background(), http.MethodGet, "/markets/{region_id}/history/", Args{
		"region_id": 10000002,
	})
	if !errors.Is(err, ErrMissingParam) {
		t.Errorf("compose() error = %v, want ErrMissingParam", err)
	}
}

func TestCompose_DefaultsApplied(t *testing.T) {
	c := newTestClient(t, nil)

	req, err := c.compose(context.Background(), http.MethodGet, "/markets/{region_id}/orders/", Args{
		"region_id": 10000002,
	})
	if err != nil {
		t.Fatalf("compose() error = %v", err)
	}

	for _, want := range []string{"order_type=all", "page=1", "datasource=tranquility"} {
		if !strings.Contains(req.URL(), want) {
			t.Errorf("URL %q missing default %q", req.URL(), want)
		}
	}
	if !strings.Contains(req.URL(), "/markets/10000002/orders/") {
		t.Errorf("URL %q missing substituted path", req.URL())
	}
}

func TestCompose_DuplicateParam(t *testing.T) {
	c := newTestClient(t, nil)

	_, err := c.compose(context.Background(), http.MethodGet, "/markets/{region_id}/orders/", Args{
		"region_id": 10000002,
		"page":      2,
		"params":    Args{"page": 3},
	})
	if !errors.Is(err, ErrDuplicateParam) {
		t.Errorf("compose() error = %v, want ErrDuplicateParam", err)
	}
}

func TestCompose_UnknownParam(t *testing.T) {
	c := newTestClient(t, nil)

	_, err := c.compose(context.Background(), http.MethodGet, "/markets/{region_id}/orders/", Args{
		"region_id": 10000002,
		"regoin_id": 10000002, // typo must not pass silently
	})
	if !errors.Is(err, ErrUnknownParam) {
		t.Errorf("compose() error = %v, want ErrUnknownParam", err)
	}
}

func TestCompose_HeaderParamRouted(t *testing.T) {
	c := newTestClient(t, nil)

	req, err := c.compose(context.Background(), http.MethodGet, "/universe/types/{type_id}/", Args{
		"type_id":         34,
		"Accept-Language": "de",
	})
	if err != nil {
		t.Fatalf("compose() error = %v", err)
	}
	if got := req.Header().Get("Accept-Language"); got != "de" {
		t.Errorf("Accept-Language = %q, want de", got)
	}
	if strings.Contains(req.URL(), "Accept-Language") {
		t.Errorf("header parameter leaked into URL %q", req.URL())
	}
}

func TestCompose_CharacterIDFromToken(t *testing.T) {
	c := authedTestClient(t, 90000001)

	req, err := c.compose(context.Background(), http.MethodGet, "/characters/{character_id}/orders/", nil)
	if err != nil {
		t.Fatalf("compose() error = %v", err)
	}
	if !strings.Contains(req.URL(), "/characters/90000001/orders/") {
		t.Errorf("URL %q missing character id from token", req.URL())
	}
	if got := req.Header().Get("Authorization"); got != "Bearer test-access" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}
}

func TestCompose_ScopedEndpointWithoutApps(t *testing.T) {
	c := newTestClient(t, nil)

	_, err := c.compose(context.Background(), http.MethodGet, "/characters/{character_id}/orders/", nil)
	if err == nil {
		t.Fatal("compose() = nil error for scoped endpoint without applications")
	}
}

func TestCompose_IdentityIncludesDefaults(t *testing.T) {
	c := newTestClient(t, nil)
	ctx := context.Background()

	implicit, err := c.compose(ctx, http.MethodGet, "/markets/{region_id}/orders/", Args{
		"region_id": 10000002,
	})
	if err != nil {
		t.Fatal(err)
	}
	explicit, err := c.compose(ctx, http.MethodGet, "/markets/{region_id}/orders/", Args{
		"region_id":  10000002,
		"order_type": "all",
		"page":       1,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Defaults and explicit values resolve to the same effective request,
	// so they must share one conditional cache entry.
	if implicit.Identity() != explicit.Identity() {
		t.Errorf("identity %q != %q for equivalent requests", implicit.Identity(), explicit.Identity())
	}
}

func TestCompose_ConditionalHeaderFromCache(t *testing.T) {
	store := cache.NewMemoryStore()
	c := newTestClient(t, func(cfg *Config) { cfg.Cache = store })
	ctx := context.Background()

	probe, err := c.compose(ctx, http.MethodGet, "/status/", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := probe.Header().Get("If-None-Match"); got != "" {
		t.Fatalf("If-None-Match = %q before any entry exists", got)
	}

	if err := cache.SetETag(ctx, store, probe.Identity(), `"v1"`, []byte(`{"players": 1}`)); err != nil {
		t.Fatal(err)
	}

	req, err := c.compose(ctx, http.MethodGet, "/status/", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := req.Header().Get("If-None-Match"); got != `"v1"` {
		t.Errorf("If-None-Match = %q, want cached validator", got)
	}
}

func TestCompose_SliceArgsCommaJoined(t *testing.T) {
	c := authedTestClient(t, 90000001)
	// search_structures scope is not registered on the test app; use the
	// public types endpoint for the formatting check instead.
	req, err := c.compose(context.Background(), http.MethodGet, "/markets/{region_id}/orders/", Args{
		"region_id": 10000002,
		"type_id":   34,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(req.URL(), "type_id=34") {
		t.Errorf("URL %q missing type_id", req.URL())
	}

	if got := formatValue([]string{"station", "structure"}); got != "station,structure" {
		t.Errorf("formatValue() = %q, want comma joined", got)
	}
	if got := formatValue([]any{1, 2, 3}); got != "1,2,3" {
		t.Errorf("formatValue() = %q, want comma joined", got)
	}
}
