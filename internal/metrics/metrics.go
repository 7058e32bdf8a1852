// Package metrics holds the Prometheus collectors shared by the harness.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_requests_total",
			Help: "Total number of execution requests",
		},
		[]string{"language", "verdict"}, // verdict: "passed", "failed"
	)

	TestCasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_test_cases_total",
			Help: "Total number of evaluated test cases",
		},
		[]string{"language", "result"},
	)

	InvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_invocations_total",
			Help: "Total number of entry point invocations by outcome",
		},
		[]string{"language", "outcome"},
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harness_phase_duration_ms",
			Help:    "Duration of execution phases in milliseconds",
			Buckets: []float64{5, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 60000},
		},
		[]string{"language", "phase"}, // phase: "prepare", "invoke", "request"
	)

	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harness_active_requests",
			Help: "Number of execution requests currently running",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harness_rate_limit_hits_total",
			Help: "Total number of HTTP requests rejected by the rate limiter",
		},
	)
)
