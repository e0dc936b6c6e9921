package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(bankTxProcessedTotal) }

var bankTxProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bank_transactions_processed_total",
		Help: "Bank transactions ingested from the provider, labeled by reconcile outcome.",
	},
	[]string{"outcome"},
)

func IncReconcileOutcome(outcome string) {
	bankTxProcessedTotal.WithLabelValues(norm(outcome)).Inc()
}
