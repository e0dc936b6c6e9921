package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ledgerEntriesTotal,
		ledgerAmountTotal,
	)
}

var (
	ledgerEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_ledger_entries_total",
			Help: "Ledger rows written, labeled by direction and transaction type.",
		},
		[]string{"direction", "tx_type"},
	)

	ledgerAmountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_ledger_amount_total",
			Help: "Sum of ledger amounts moved, labeled by direction and transaction type.",
		},
		[]string{"direction", "tx_type"},
	)
)

func AddLedgerEntry(direction, txType string, amount int64) {
	lbl := []string{norm(direction), norm(txType)}
	ledgerEntriesTotal.WithLabelValues(lbl...).Inc()
	ledgerAmountTotal.WithLabelValues(lbl...).Add(float64(amount))
}
