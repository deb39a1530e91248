package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric exported by the gateway
const Namespace = "clinic_bff"

// Attempt outcome label values for FetchAttemptsCounter
const (
	OutcomeOK             = "ok"
	OutcomeRateLimited    = "rate_limited"
	OutcomeTransportError = "transport_error"
)

var (
	// FetchAttemptsCounter counts every upstream attempt made by the retrying fetcher
	FetchAttemptsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "fetch_attempts_total",
		Help:      "Upstream attempts made by the retrying fetcher, by outcome",
	}, []string{"outcome"})

	// FetchFallbacksCounter counts calls that exhausted retries and returned the synthetic empty response
	FetchFallbacksCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "fetch_fallbacks_total",
		Help:      "Fetch calls answered with the synthetic empty fallback after exhausting retries",
	})

	// FetchBackoffHistogram observes each backoff wait (excluding jitter)
	FetchBackoffHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "fetch_backoff_seconds",
		Help:      "Backoff waits between fetch attempts",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 180},
	})

	// PasskeyFailuresCounter counts rejected admin passkey attempts
	PasskeyFailuresCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "admin_passkey_failures_total",
		Help:      "Rejected admin passkey attempts",
	})

	// PasskeyLockoutsCounter counts passkey requests answered 429, including the failure that triggers the lock
	PasskeyLockoutsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "admin_passkey_lockouts_total",
		Help:      "Admin passkey requests answered 429 because the client is locked out",
	})

	// UploadRejectedCounter counts uploads rejected by validation, by reason
	UploadRejectedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "upload_rejected_total",
		Help:      "Uploads rejected before reaching the backend, by reason",
	}, []string{"reason"})
)
