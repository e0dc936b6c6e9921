package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		renewalAttemptsTotal,
		renewalSweepDue,
		renewalSweepsTotal,
	)
}

var (
	renewalAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auto_renew_attempts_total",
			Help: "Auto-renew billing attempts, labeled by result.",
		},
		[]string{"status"},
	)

	renewalSweepDue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auto_renew_sweep_due",
			Help: "Subscriptions found due in the most recent scheduler sweep.",
		},
	)

	renewalSweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auto_renew_sweeps_total",
			Help: "Scheduler sweep results accumulated across runs.",
		},
		[]string{"result"}, // 'renewed', 'failed'
	)
)

func IncRenewalAttempt(status string) {
	renewalAttemptsTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveRenewalRun(due, renewed, failed int) {
	renewalSweepDue.Set(float64(due))
	renewalSweepsTotal.WithLabelValues("renewed").Add(float64(renewed))
	renewalSweepsTotal.WithLabelValues("failed").Add(float64(failed))
}
