// Package metrics exposes the library's Prometheus instrumentation over
// HTTP. All packages register their collectors on the default registry at
// init; embedding applications that run their own /metrics endpoint can
// ignore this package entirely.
//
// Exported metric families:
//
//	esi_requests_total              requests by endpoint, method, final status
//	esi_request_duration_seconds    request wall time including retries
//	esi_request_retries_total       retried attempts
//	esi_requests_in_flight          currently dispatching requests
//	esi_errors_remaining            error budget left in the current window
//	esi_admission_rejections_total  requests blocked before dispatch
//	esi_cache_hits_total            cache hits by backend
//	esi_cache_misses_total          cache misses by backend
//	esi_cache_errors_total          cache backend errors by operation
//	esi_304_responses_total         conditional requests answered 304
//	esi_conditional_requests_total  requests sent with If-None-Match
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handler returns the scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer builds an HTTP server exposing /metrics on addr. The caller owns
// its lifecycle.
func NewServer(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	logger.Info().Str("addr", addr).Msg("metrics endpoint configured")
	return &http.Server{Addr: addr, Handler: mux}
}
