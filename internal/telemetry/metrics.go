/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP requests by method, endpoint, status.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fillline",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIRequestDuration observes HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fillline",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIActiveConnections tracks in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fillline",
			Subsystem: "api",
			Name:      "active_connections",
			Help:      "In-flight HTTP requests.",
		},
	)

	// ScheduleRunsTotal counts planning runs by strategy and outcome.
	ScheduleRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fillline",
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Planning runs by strategy and outcome.",
		},
		[]string{"strategy", "status"},
	)

	// ScheduleRunDuration observes planning wall time by strategy.
	ScheduleRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fillline",
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Planning run wall time by strategy.",
			Buckets:   []float64{.005, .025, .1, .5, 1, 5, 15, 60, 120},
		},
		[]string{"strategy"},
	)

	// ComparisonRunsTotal counts comparison jobs by outcome.
	ComparisonRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fillline",
			Subsystem: "scheduler",
			Name:      "comparison_runs_total",
			Help:      "Comparison jobs by outcome.",
		},
		[]string{"status"},
	)

	// APIWebSocketConnections tracks open event-stream sockets.
	APIWebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fillline",
			Subsystem: "api",
			Name:      "websocket_connections",
			Help:      "Open WebSocket event streams.",
		},
	)

	// JobQueueDepth tracks queued-but-not-started jobs.
	JobQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fillline",
			Subsystem: "jobs",
			Name:      "queue_depth",
			Help:      "Jobs waiting for a worker.",
		},
	)
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
