package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ordersCreatedTotal,
		ordersPaidTotal,
		ordersRevenueTotal,
		licensesIssuedTotal,
	)
}

var (
	ordersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created, labeled by payment method.",
		},
		[]string{"method"},
	)

	ordersPaidTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_paid_total",
			Help: "Orders settled, labeled by payment method.",
		},
		[]string{"method"},
	)

	ordersRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_revenue_total",
			Help: "Total monetary value of settled orders, labeled by payment method.",
		},
		[]string{"method"},
	)

	licensesIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "licenses_issued_total",
			Help: "New licenses issued (extensions of existing licenses not counted).",
		},
	)
)

func IncOrderCreated(method string) {
	ordersCreatedTotal.WithLabelValues(norm(method)).Inc()
}

func IncOrderPaid(method string, amount int64) {
	ordersPaidTotal.WithLabelValues(norm(method)).Inc()
	ordersRevenueTotal.WithLabelValues(norm(method)).Add(float64(amount))
}

func IncLicenseIssued() {
	licensesIssuedTotal.Inc()
}
