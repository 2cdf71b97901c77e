package live

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type liveMetrics struct {
	connectedClientsGauge prometheus.Gauge
	broadcastCounter      *prometheus.CounterVec
	droppedClientsCounter prometheus.Counter
}

var metrics *liveMetrics

func init() {
	metrics = new(liveMetrics)

	metrics.connectedClientsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "messaging_connector_live_connected_client_count",
		Help: "The number of connected live update clients",
	})

	metrics.broadcastCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_connector_live_update_sent_count",
		Help: "The number of live updates queued for clients per update type",
	}, []string{"type"})

	metrics.droppedClientsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_connector_live_dropped_client_count",
		Help: "The number of live update clients dropped after a failed write or a full send buffer",
	})
}
