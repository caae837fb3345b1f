package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdlend_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crowdlend_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	CreditApplicationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdlend_credit_applications_total",
			Help: "Credit applications by outcome",
		},
		[]string{"outcome"},
	)

	CreditAppliedAmount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdlend_credit_applied_amount_total",
			Help: "Sum of referral credit applied to transactions",
		},
	)

	CreditRefundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdlend_credit_refunds_total",
			Help: "Total number of refunded credit applications",
		},
	)

	CreditsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdlend_credits_expired_total",
			Help: "Total number of credits expired by the sweep",
		},
	)

	FraudChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdlend_fraud_checks_total",
			Help: "Fraud checks by check type and risk level",
		},
		[]string{"check_type", "risk_level"},
	)

	UsersBlockedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdlend_users_blocked_total",
			Help: "Total number of users blocked for referral fraud",
		},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdlend_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)

func RecordHTTPRequest(method, route, status string, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

func RecordCreditApplication(outcome string, amount float64) {
	CreditApplicationsTotal.WithLabelValues(outcome).Inc()
	if amount > 0 {
		CreditAppliedAmount.Add(amount)
	}
}

func RecordCreditRefund() {
	CreditRefundsTotal.Inc()
}

func RecordCreditsExpired(n int) {
	if n > 0 {
		CreditsExpiredTotal.Add(float64(n))
	}
}

func RecordFraudCheck(checkType, riskLevel string) {
	FraudChecksTotal.WithLabelValues(checkType, riskLevel).Inc()
}

func RecordUserBlocked() {
	UsersBlockedTotal.Inc()
}

func RecordRateLimited(route string) {
	RateLimitedTotal.WithLabelValues(route).Inc()
}
