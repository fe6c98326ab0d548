// Package ratelimit mirrors the ESI error rate limit locally. ESI reports a
// remaining-errors budget via the X-ESI-Error-Limit-Remain and
// X-ESI-Error-Limit-Reset response headers; burning through it gets the
// source IP banned, so the client tracks the budget across all in-flight
// requests and stops raising silent failures once it runs low.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ESI rate limit response headers.
const (
	HeaderErrorLimitRemain = "X-ESI-Error-Limit-Remain"
	HeaderErrorLimitReset  = "X-ESI-Error-Limit-Reset"
)

// Defaults assumed before the first server response is seen.
const (
	DefaultRemain = 100
	DefaultWindow = 60
)

var errorsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "esi_errors_remaining",
	Help: "Errors remaining in the current ESI rate limit window",
})

// Budget is the process-wide error budget shared by all requests issued
// through one client. It is seeded from the most recent server-reported
// value and decremented locally per failed attempt until the next sync.
//
// All methods are safe for concurrent use; the mutex replaces the
// single-threaded guarantees the budget would otherwise rely on.
type Budget struct {
	mu      sync.Mutex
	remain  int
	window  int
	resetAt time.Time
	logger  zerolog.Logger
}

// NewBudget creates a budget assumed healthy until the first sync.
func NewBudget(logger zerolog.Logger) *Budget {
	errorsRemaining.Set(float64(DefaultRemain))
	return &Budget{
		remain:  DefaultRemain,
		window:  DefaultWindow,
		resetAt: time.Now().Add(DefaultWindow * time.Second),
		logger:  logger,
	}
}

// Sync overwrites the local budget with a server-reported value.
func (b *Budget) Sync(remain, windowSeconds int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.remain = remain
	b.window = windowSeconds
	b.resetAt = time.Now().Add(time.Duration(windowSeconds) * time.Second)
	errorsRemaining.Set(float64(remain))

	if remain < 20 {
		b.logger.Warn().
			Int("errors_remaining", remain).
			Int("reset_seconds", windowSeconds).
			Msg("ESI error limit running low")
	}
}

// SyncFromHeaders parses the rate limit headers and syncs the budget.
// Returns the parsed values, or ok=false if the headers were absent or
// malformed (normal for non-ESI responses).
func (b *Budget) SyncFromHeaders(headers http.Header) (remain, windowSeconds int, ok bool) {
	remainStr := headers.Get(HeaderErrorLimitRemain)
	resetStr := headers.Get(HeaderErrorLimitReset)
	if remainStr == "" || resetStr == "" {
		return 0, 0, false
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return 0, 0, false
	}
	windowSeconds, err = strconv.Atoi(resetStr)
	if err != nil {
		return 0, 0, false
	}

	b.Sync(remain, windowSeconds)
	return remain, windowSeconds, true
}

// Spend consumes one unit of the budget for a failed attempt and returns the
// remaining count. The local count never goes below zero; the server value
// reasserts itself on the next sync.
func (b *Budget) Spend() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.remain > 0 {
		b.remain--
	}
	errorsRemaining.Set(float64(b.remain))
	return b.remain
}

// Remaining returns the current local budget.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remain
}

// Window returns the last reported window length in seconds.
func (b *Budget) Window() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.window
}

// TimeUntilReset returns the duration until the window resets, or zero if the
// reset time has passed.
func (b *Budget) TimeUntilReset() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := time.Until(b.resetAt)
	if d < 0 {
		return 0
	}
	return d
}
