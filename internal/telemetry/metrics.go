// Package telemetry holds the Prometheus collectors and the OpenTelemetry
// tracer setup used by the EDGAR client and the pack builder.
package telemetry

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PackBuilds counts pack builds by outcome (ok, bad_request, not_found, config_error, error).
	PackBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secpack",
		Name:      "pack_builds_total",
		Help:      "Pack builds by outcome.",
	}, []string{"outcome"})

	// ExhibitDecisions counts triage outcomes by tier and status.
	ExhibitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secpack",
		Name:      "exhibit_decisions_total",
		Help:      "Exhibit triage decisions by tier and status.",
	}, []string{"tier", "status"})

	// RegistryRequests counts EDGAR HTTP attempts by status class.
	RegistryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secpack",
		Name:      "registry_requests_total",
		Help:      "EDGAR HTTP attempts by response status class.",
	}, []string{"status"})

	// RegistryRetries counts backoff waits before a repeated EDGAR attempt.
	RegistryRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "secpack",
		Name:      "registry_retries_total",
		Help:      "EDGAR requests retried after a transient failure.",
	})

	// ArchiveBytes counts payload bytes written into pack archives.
	ArchiveBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "secpack",
		Name:      "archive_payload_bytes_total",
		Help:      "Uncompressed payload bytes written into pack archives.",
	})

	// PackDuration observes the wall time of a full pack build.
	PackDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "secpack",
		Name:      "pack_duration_seconds",
		Help:      "Wall time of a pack build from selection to archive close.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
)

// StatusClass maps an HTTP status to a low-cardinality label ("2xx", "4xx", ...).
// Zero means the request never produced a response.
func StatusClass(code int) string {
	if code <= 0 {
		return "transport_error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// MetricsHandler returns the handler for the /metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
