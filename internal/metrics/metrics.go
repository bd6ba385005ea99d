// Package metrics registers the prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DepositsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greentera_deposits_total",
			Help: "Number of waste deposits recorded",
		},
		[]string{"category", "method"},
	)

	DepositWeightKg = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greentera_deposit_weight_kg_total",
			Help: "Kilograms of waste deposited",
		},
		[]string{"category"},
	)

	PointsAwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greentera_points_awarded_total",
			Help: "Points credited to users",
		},
		[]string{"source"},
	)

	VouchersRedeemed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greentera_vouchers_redeemed_total",
			Help: "Vouchers issued against user points",
		},
		[]string{"kind"}, // "template", "legacy", "admin"
	)

	VoucherRefunds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "greentera_voucher_refunds_total",
			Help: "Unredeemed vouchers deleted with a point refund",
		},
	)

	TreeClaims = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "greentera_tree_claims_total",
			Help: "Grown trees claimed",
		},
	)

	ClassifierRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greentera_classifier_requests_total",
			Help: "Waste image classifications by outcome",
		},
		[]string{"outcome"}, // "ok", "mock", "fallback", "open"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "greentera_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greentera_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveRequest records one served request.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
