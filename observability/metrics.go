// Package observability provides Prometheus metrics and gin middleware
// for monitoring garant.
package observability

import "github.com/prometheus/client_golang/prometheus"

// ChainBuckets suit JSON-RPC round trips, from 10ms to 10s.
var ChainBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	// RequestsTotal counts HTTP requests by method, route and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garant_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "garant_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// NoncesIssuedTotal counts issued challenges.
	NoncesIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "garant_nonces_issued_total",
			Help: "Issued challenges",
		},
	)

	// VerificationsTotal counts sign-in verifications by result ("ok" or rejection reason).
	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garant_verifications_total",
			Help: "Sign-in verifications",
		},
		[]string{"result"},
	)

	// AccessChecksTotal counts access checks by standard and result (granted, denied, error).
	AccessChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garant_access_checks_total",
			Help: "Access checks",
		},
		[]string{"standard", "result"},
	)

	// AccessCacheTotal counts cache lookups by outcome (hit, miss, bypass).
	AccessCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garant_access_cache_total",
			Help: "Access cache lookups",
		},
		[]string{"outcome"},
	)

	// ChainQueryDuration records chain query latency by method.
	ChainQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "garant_chain_query_duration_seconds",
			Help:    "Chain query latency",
			Buckets: ChainBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		NoncesIssuedTotal,
		VerificationsTotal,
		AccessChecksTotal,
		AccessCacheTotal,
		ChainQueryDuration,
	)
}
