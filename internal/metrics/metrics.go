// Package metrics provides Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "krugerr_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krugerr_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RemoteFailures counts remote store calls that degraded to local state.
	RemoteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krugerr_remote_failures_total",
			Help: "Remote store calls that failed and fell back to local state",
		},
		[]string{"collection", "op"},
	)

	// Writes counts reconciler writes by where they landed.
	Writes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krugerr_writes_total",
			Help: "Record creations by destination store",
		},
		[]string{"collection", "destination"},
	)

	// CollectionSize tracks the size of each reconciled list after a load.
	CollectionSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "krugerr_collection_records",
			Help: "Records in the reconciled in-memory list",
		},
		[]string{"collection"},
	)

	// FXFetches counts exchange-rate fetches by outcome (ok, fallback).
	FXFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krugerr_fx_fetches_total",
			Help: "Exchange rate fetches by outcome",
		},
		[]string{"outcome"},
	)

	// LiveConnections tracks connected admin websocket clients.
	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "krugerr_live_connections",
			Help: "Connected admin live-feed clients",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, route, status).Inc()
}
