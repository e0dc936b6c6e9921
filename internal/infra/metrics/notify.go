package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(notificationsTotal) }

var notificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Outbound notifications, labeled by event type and delivery result.",
	},
	[]string{"event", "result"}, // result: 'sent', 'failed'
)

func IncNotification(event string, sent bool) {
	result := "failed"
	if sent {
		result = "sent"
	}
	notificationsTotal.WithLabelValues(norm(event), result).Inc()
}
