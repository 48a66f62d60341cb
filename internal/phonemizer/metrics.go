package phonemizer

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for request outcomes.
const (
	outcomeSuccess     = "success"
	outcomeFailed      = "failed"
	outcomeUnavailable = "unavailable"
	outcomeRejected    = "rejected"
)

// Recycle reasons.
const (
	reasonThreshold = "threshold"
	reasonLanguage  = "language"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phonemizer_requests_total",
			Help: "Total number of phonemize calls by outcome.",
		},
		[]string{"outcome"},
	)

	recyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phonemizer_engine_recycles_total",
			Help: "Total number of engine recycles by reason.",
		},
		[]string{"reason"},
	)

	enginesCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "phonemizer_engines_created_total",
			Help: "Total number of engines constructed.",
		},
	)

	engineCreateFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "phonemizer_engine_create_failures_total",
			Help: "Total number of failed engine constructions.",
		},
	)

	engineOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "phonemizer_engine_open",
			Help: "Whether an engine is currently open (0 or 1).",
		},
	)

	engineRequestsAtRecycle = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "phonemizer_engine_requests_at_recycle",
			Help:    "Requests served by an engine when it was recycled.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(recyclesTotal)
	prometheus.MustRegister(enginesCreatedTotal)
	prometheus.MustRegister(engineCreateFailuresTotal)
	prometheus.MustRegister(engineOpen)
	prometheus.MustRegister(engineRequestsAtRecycle)

	for _, outcome := range []string{outcomeSuccess, outcomeFailed, outcomeUnavailable, outcomeRejected} {
		requestsTotal.WithLabelValues(outcome)
	}

	recyclesTotal.WithLabelValues(reasonThreshold)
	recyclesTotal.WithLabelValues(reasonLanguage)
}
