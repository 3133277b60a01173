package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_registry_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_registry_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	ModelOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_registry_model_operations_total",
			Help: "Model record operations by outcome",
		},
		[]string{"operation", "outcome"}, // outcome: "ok", "absent" or "error"
	)

	ArtefactBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_registry_artefact_bytes_total",
			Help: "Artefact bytes transferred",
		},
		[]string{"direction"}, // "upload" or "download"
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "model_registry_auth_failures_total",
			Help: "Requests rejected by the access gate",
		},
	)
)
