package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "intake", Name: "submissions_total", Help: "Number of submissions by outcome."},
		[]string{"outcome"},
	)
	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "intake", Name: "lookups_total", Help: "Number of record lookups by result."},
		[]string{"result"},
	)
	NotifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "intake", Name: "notify_failures_total", Help: "Number of failed notification deliveries."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "intake", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "intake", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(SubmissionsTotal)
	reg.MustRegister(LookupsTotal)
	reg.MustRegister(NotifyFailures)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
