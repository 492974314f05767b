// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook call outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "family_movies_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "family_movies_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "family_movies_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "family_movies_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	WebhookCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "family_movies_webhook_calls_total",
			Help: "Calls to the recommendation webhook by outcome",
		},
		[]string{"outcome"},
	)

	// The agent is expected to answer in 3-15s.
	WebhookDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "family_movies_webhook_duration_seconds",
			Help:    "Recommendation webhook round trip in seconds",
			Buckets: []float64{0.5, 1, 3, 5, 10, 15, 30},
		},
	)

	// 0=closed, 1=half-open, 2=open, matching gobreaker.State.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "family_movies_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	RealtimeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "family_movies_realtime_subscribers",
			Help: "Open invalidation stream subscriptions",
		},
	)

	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "family_movies_realtime_events_total",
			Help: "Invalidation events by delivery result",
		},
		[]string{"result"},
	)
)

// RecordAPIRequest records one finished request. endpoint should be the route
// pattern, not the raw path.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	if endpoint == "" {
		endpoint = "unmatched"
	}
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func RecordWebhookCall(outcome string, duration time.Duration) {
	WebhookCallsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeRejected {
		WebhookDuration.Observe(duration.Seconds())
	}
}

func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordEventDelivery counts fan-out results: "delivered" or "dropped".
func RecordEventDelivery(result string) {
	RealtimeEventsTotal.WithLabelValues(result).Inc()
}
