package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docstore", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docstore", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	DocumentOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docstore", Name: "document_outcomes_total", Help: "Document writes and deletes by operation and outcome."},
		[]string{"operation", "outcome"},
	)
	DocumentRollbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docstore", Name: "document_rollbacks_total", Help: "Mutations reverted after an etag conflict."},
		[]string{"operation"},
	)
	AccessDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docstore", Name: "access_denied_total", Help: "Requests rejected by authentication or authorization."},
		[]string{"reason"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(DocumentOutcomes)
	reg.MustRegister(DocumentRollbacks)
	reg.MustRegister(AccessDenied)
}
