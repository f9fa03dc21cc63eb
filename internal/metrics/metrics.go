package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts Stripe webhook requests by event type and status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentready",
		Name:      "webhook_requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rentready",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// PurchaseCreditsTotal counts purchase credits applied, by kind and
	// delivery channel (verify or webhook). Duplicate claims never count.
	PurchaseCreditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentready",
		Name:      "purchase_credits_total",
		Help:      "Purchase-completion events applied, by kind and channel.",
	}, []string{"kind", "channel"})

	// DuplicateClaimsTotal counts purchase events observed after they were
	// already applied by the other channel.
	DuplicateClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentready",
		Name:      "duplicate_claims_total",
		Help:      "Purchase events seen again after first application.",
	}, []string{"channel"})

	// ReportsGeneratedTotal counts completed report generations by reason.
	ReportsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentready",
		Name:      "reports_generated_total",
		Help:      "Reports generated, labeled by entitlement reason.",
	}, []string{"reason"})

	// AccessDeniedTotal counts entitlement denials.
	AccessDeniedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rentready",
		Name:      "access_denied_total",
		Help:      "Report-generation attempts denied by the entitlement ledger.",
	})

	// HTTPRequestsTotal counts API requests by method and status class.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentready",
		Name:      "http_requests_total",
		Help:      "API requests handled, by method and HTTP status.",
	}, []string{"method", "status"})
)
