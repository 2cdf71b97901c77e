package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type sessionMetrics struct {
	connectCounter         *prometheus.CounterVec
	reconnectCounter       prometheus.Counter
	staleReconnectCounter  prometheus.Counter
	disconnectCounter      *prometheus.CounterVec
	inboundMessageCounter  prometheus.Counter
	statusUpdateCounter    *prometheus.CounterVec
	sendDuration           prometheus.Histogram
	sendFailureCounter     prometheus.Counter
	credentialsSaveFailure prometheus.Counter
	eventPanicCounter      *prometheus.CounterVec
}

var metrics *sessionMetrics

func init() {
	metrics = new(sessionMetrics)

	metrics.connectCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_connector_session_connect_count",
		Help: "The number of connect attempts",
	}, []string{"result"})

	metrics.reconnectCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_connector_session_reconnect_count",
		Help: "The number of scheduled reconnect attempts that fired",
	})

	metrics.staleReconnectCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_connector_session_stale_reconnect_count",
		Help: "The number of scheduled reconnect attempts skipped because the session was replaced or removed",
	})

	metrics.disconnectCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_connector_session_disconnect_count",
		Help: "The number of closed sessions by classification",
	}, []string{"class"})

	metrics.inboundMessageCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_connector_session_inbound_message_count",
		Help: "The number of inbound messages reported to the backend",
	})

	metrics.statusUpdateCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_connector_session_message_status_update_count",
		Help: "The number of message status updates reported to the backend",
	}, []string{"status"})

	metrics.sendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "messaging_connector_session_send_duration",
		Help: "The amount of time it took to hand a message to the protocol",
	})

	metrics.sendFailureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_connector_session_send_failure_count",
		Help: "The number of messages the protocol failed to send",
	})

	metrics.credentialsSaveFailure = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_connector_session_credentials_save_failure_count",
		Help: "The number of credential updates that could not be persisted",
	})

	metrics.eventPanicCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_connector_session_event_panic_count",
		Help: "The number of protocol events whose handler panicked",
	}, []string{"event"})
}
