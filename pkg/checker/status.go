package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultStatusURL is the live health board CCP publishes for every ESI
// route.
const DefaultStatusURL = "https://esi.evetech.net/status.json?version=latest"

// statusRefreshInterval caps how often the board is re-fetched. Requests
// between refreshes use the cached snapshot.
const statusRefreshInterval = 60 * time.Second

// Route health values reported by the board.
const (
	StatusGreen  = "green"
	StatusYellow = "yellow"
	StatusRed    = "red"
)

type routeEntry struct {
	Endpoint string `json:"endpoint"`
	Method   string `json:"method"`
	Route    string `json:"route"`
	Status   string `json:"status"`
}

// StatusBoard is a throttled mirror of the ESI route health board. Lookups
// refresh the snapshot at most once per interval; a failed refresh keeps the
// previous snapshot so a flaky board never blocks requests on its own. A
// failed refresh still starts a new interval, so an unreachable board is
// probed once per interval rather than on every lookup.
type StatusBoard struct {
	url    string
	client *http.Client
	logger zerolog.Logger

	mu        sync.Mutex
	entries   map[string]string
	lastFetch time.Time
}

// NewStatusBoard creates a board backed by url. A nil httpClient falls back
// to http.DefaultClient.
func NewStatusBoard(url string, httpClient *http.Client, logger zerolog.Logger) *StatusBoard {
	if url == "" {
		url = DefaultStatusURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &StatusBoard{
		url:    url,
		client: httpClient,
		logger: logger.With().Str("component", "status_board").Logger(),
	}
}

// Status returns the reported health of a route, refreshing the snapshot if
// it is older than the refresh interval. Routes the board does not list
// report StatusGreen: absence of evidence is not grounds to block.
func (b *StatusBoard) Status(ctx context.Context, method, route string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if time.Since(b.lastFetch) >= statusRefreshInterval {
		b.lastFetch = time.Now()
		if err := b.refreshLocked(ctx); err != nil {
			b.logger.Warn().Err(err).Msg("status board refresh failed, using previous snapshot")
		}
	}

	if status, ok := b.entries[routeKey(method, route)]; ok {
		return status
	}
	return StatusGreen
}

func (b *StatusBoard) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status board returned %d", resp.StatusCode)
	}

	var routes []routeEntry
	if err := json.NewDecoder(resp.Body).Decode(&routes); err != nil {
		return fmt.Errorf("decode status board: %w", err)
	}

	entries := make(map[string]string, len(routes))
	for _, r := range routes {
		entries[routeKey(r.Method, r.Route)] = r.Status
	}
	b.entries = entries

	b.logger.Debug().Int("routes", len(entries)).Msg("status board refreshed")
	return nil
}

// routeKey normalizes case: the board reports lowercase methods.
func routeKey(method, route string) string {
	return strings.ToUpper(method) + " " + route
}
