package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK      = "ok"
	outcomeAPI     = "api_error"
	outcomeNetwork = "network_error"
)

var (
	backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total course backend calls by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	backendRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Course backend call duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(backendRequestsTotal, backendRequestDurationSeconds)
}

func observe(op, outcome string, start time.Time) {
	backendRequestsTotal.WithLabelValues(op, outcome).Inc()
	backendRequestDurationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
