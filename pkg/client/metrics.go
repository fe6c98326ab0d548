package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "esi_requests_total",
		Help: "ESI requests by endpoint, method and final status",
	}, []string{"endpoint", "method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "esi_request_duration_seconds",
		Help:    "Wall time of one ESI request including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "esi_request_retries_total",
		Help: "Retried attempts across all requests",
	})

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "esi_requests_in_flight",
		Help: "Requests currently being dispatched",
	})
)
