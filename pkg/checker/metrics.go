package checker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var checksRejected = promauto.NewCounter(prometheus.CounterOpts{
	Name: "esi_admission_rejections_total",
	Help: "Requests blocked by an admission rule before dispatch",
})
