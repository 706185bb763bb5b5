package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		billingEventsTotal,
		subscriptionsPastDue,
	)
}

var (
	billingEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_events_total",
			Help: "Processor webhook events by type and outcome.",
		},
		[]string{"type", "outcome"}, // outcome: 'applied', 'rejected', 'failed'
	)

	subscriptionsPastDue = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_past_due_total",
			Help: "Active subscriptions downgraded by the period sweeper.",
		},
	)
)

func IncBillingEvent(eventType, outcome string) {
	billingEventsTotal.WithLabelValues(norm(eventType), norm(outcome)).Inc()
}

func AddSubscriptionsPastDue(n int) {
	subscriptionsPastDue.Add(float64(n))
}
