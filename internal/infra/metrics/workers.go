package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		licensesExpiredTotal,
		workerLockAcquired,
	)
}

var (
	licensesExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "licenses_expired_total",
			Help: "Licenses flipped to expired by the expiry worker.",
		},
	)

	workerLockAcquired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_lock_acquired_total",
			Help: "Distributed lock acquisition results per worker.",
		},
		[]string{"worker", "result"}, // result: 'acquired', 'held_elsewhere'
	)
)

func AddLicensesExpired(n int) {
	licensesExpiredTotal.Add(float64(n))
}

func IncWorkerLock(worker string, acquired bool) {
	result := "held_elsewhere"
	if acquired {
		result = "acquired"
	}
	workerLockAcquired.WithLabelValues(norm(worker), result).Inc()
}
