// Package metrics registers the Prometheus instruments for the betting
// backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BetsPlaced counts accepted bets by position.
	BetsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betonem_bets_placed_total",
		Help: "Number of bets accepted, by position.",
	}, []string{"position"})

	// MarketsResolved counts terminal market transitions by result
	// (yes, no, cancelled, refund).
	MarketsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betonem_markets_resolved_total",
		Help: "Number of markets moved to a terminal state, by result.",
	}, []string{"result"})

	// GatewayRequests observes PayPal call latency by operation and
	// outcome.
	GatewayRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "betonem_gateway_request_seconds",
		Help:    "PayPal API call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	// WebhookEvents counts inbound gateway webhook deliveries by event
	// type and handling outcome (applied, ignored, rejected, error).
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betonem_webhook_events_total",
		Help: "Inbound gateway webhook deliveries, by type and outcome.",
	}, []string{"type", "outcome"})

	// PayoutsSubmitted counts real-money payout instructions submitted to
	// the gateway, by origin (wager, group).
	PayoutsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betonem_payouts_submitted_total",
		Help: "Payout instructions submitted to the gateway, by origin.",
	}, []string{"origin"})
)
