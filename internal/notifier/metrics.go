package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type notifierMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var metrics *notifierMetrics

func init() {
	metrics = new(notifierMetrics)

	metrics.requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_connector_backend_notification_count",
		Help: "The number of notifications sent to the backend",
	}, []string{"endpoint", "result"})

	metrics.requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "messaging_connector_backend_notification_duration",
		Help: "The amount of time it took to deliver a notification to the backend",
	}, []string{"endpoint"})
}
