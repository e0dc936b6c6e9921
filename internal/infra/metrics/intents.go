package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		intentsCreatedTotal,
		intentsExpiredTotal,
	)
}

var (
	intentsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_created_total",
			Help: "Payment intents created, labeled by purpose.",
		},
		[]string{"purpose"},
	)

	intentsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_intents_expired_total",
			Help: "Payment intents that expired before any money arrived.",
		},
	)
)

func IncIntentCreated(purpose string) {
	intentsCreatedTotal.WithLabelValues(norm(purpose)).Inc()
}

func IncIntentExpired() {
	intentsExpiredTotal.Inc()
}
