package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cache operations.
var (
	Hits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "esi_cache_hits_total",
		Help: "Total cache hits by backend",
	}, []string{"backend"})

	Misses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "esi_cache_misses_total",
		Help: "Total cache misses",
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "esi_cache_errors_total",
		Help: "Total cache operation errors by operation",
	}, []string{"operation"})

	NotModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "esi_304_responses_total",
		Help: "Total 304 Not Modified responses answered from cache",
	})

	ConditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "esi_conditional_requests_total",
		Help: "Total requests sent with an If-None-Match header",
	})
)
