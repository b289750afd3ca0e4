package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// deliveriesTotal counts finished sends by outcome: sent, failed,
	// disabled, rejected (user lookup or recording errors).
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_deliveries_total",
			Help: "Digest send attempts by outcome.",
		},
		[]string{"status"},
	)

	// feedbackTotal counts recorded engagement events by kind.
	feedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_feedback_total",
			Help: "Recorded feedback events by kind.",
		},
		[]string{"kind"},
	)

	// aiCallsTotal counts AI calls: ok, error, rejected (unusable answer),
	// budget (skipped because the per-send budget was spent).
	aiCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_ai_calls_total",
			Help: "AI generation calls by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(deliveriesTotal, feedbackTotal, aiCallsTotal)
}
