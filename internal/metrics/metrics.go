package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "partnerpay_"

	resultSuccess = "success"
)

var (
	registerOnce sync.Once

	payoutRequests       *prometheus.CounterVec
	payoutRequestLatency *prometheus.HistogramVec
	payoutTransitions    *prometheus.CounterVec

	rateLimitDecisions   *prometheus.CounterVec
	rateLimitStoreErrors *prometheus.CounterVec

	txRetries  prometheus.Counter
	txFailures *prometheus.CounterVec

	gatewayCalls   *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec

	notifications *prometheus.CounterVec
)

// Init registers the pipeline metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		payoutRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payout_requests_total",
				Help: "Total payout requests by result code",
			},
			[]string{"result"},
		)
		payoutRequestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "payout_request_latency_seconds",
				Help:    "Payout request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		payoutTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payout_transitions_total",
				Help: "Total applied payout status transitions by target status",
			},
			[]string{"status"},
		)
		rateLimitDecisions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ratelimit_decisions_total",
				Help: "Total rate limit decisions by class and result",
			},
			[]string{"class", "result"},
		)
		rateLimitStoreErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ratelimit_store_errors_total",
				Help: "Quota store failures that were admitted fail-open",
			},
			[]string{"class"},
		)
		txRetries = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "tx_retries_total",
				Help: "Total transaction retries after contention",
			},
		)
		txFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "tx_failures_total",
				Help: "Total failed transactions by reason",
			},
			[]string{"reason"},
		)
		gatewayCalls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "gateway_calls_total",
				Help: "Total gateway calls by operation and result",
			},
			[]string{"operation", "result"},
		)
		gatewayLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "gateway_latency_seconds",
				Help:    "Gateway call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)
		notifications = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total lifecycle notifications by channel and result",
			},
			[]string{"channel", "result"},
		)

		prometheus.MustRegister(
			payoutRequests,
			payoutRequestLatency,
			payoutTransitions,
			rateLimitDecisions,
			rateLimitStoreErrors,
			txRetries,
			txFailures,
			gatewayCalls,
			gatewayLatency,
			notifications,
		)
	})
}

// ObservePayoutRequest records a payout request by its result code.
func ObservePayoutRequest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if payoutRequests != nil {
		payoutRequests.WithLabelValues(result).Inc()
	}
	if payoutRequestLatency != nil {
		payoutRequestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

func IncPayoutTransition(status string) {
	if payoutTransitions != nil {
		payoutTransitions.WithLabelValues(status).Inc()
	}
}

func IncRateLimitDecision(class string, admitted bool) {
	result := "admitted"
	if !admitted {
		result = "refused"
	}
	if rateLimitDecisions != nil {
		rateLimitDecisions.WithLabelValues(class, result).Inc()
	}
}

func IncRateLimitStoreError(class string) {
	if rateLimitStoreErrors != nil {
		rateLimitStoreErrors.WithLabelValues(class).Inc()
	}
}

func IncTxRetry() {
	if txRetries != nil {
		txRetries.Inc()
	}
}

func IncTxFailure(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if txFailures != nil {
		txFailures.WithLabelValues(reason).Inc()
	}
}

// ObserveGatewayCall records a gateway round trip.
func ObserveGatewayCall(operation string, err error, duration time.Duration) {
	result := resultSuccess
	if err != nil {
		result = "error"
	}
	if gatewayCalls != nil {
		gatewayCalls.WithLabelValues(operation, result).Inc()
	}
	if gatewayLatency != nil {
		gatewayLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

func IncNotification(channel, result string) {
	if notifications != nil {
		notifications.WithLabelValues(channel, result).Inc()
	}
}
