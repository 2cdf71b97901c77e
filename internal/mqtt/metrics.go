package mqtt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	eventReceivedCounter           *prometheus.CounterVec
	sentCommandCounter             *prometheus.CounterVec
	messagePublishedSuccessCounter prometheus.Counter
	messagePublishedFailureCounter prometheus.Counter
	requestDuration                *prometheus.HistogramVec
	connectionLostCounter          *prometheus.CounterVec
	openHandlesGauge               prometheus.Gauge
}

func NewMetrics() *Metrics {
	metrics := new(Metrics)

	metrics.eventReceivedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_connector_gateway_event_received_count",
		Help: "The number of events received from the protocol gateway",
	}, []string{"event"})

	metrics.sentCommandCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_connector_gateway_sent_command_count",
		Help: "The number of commands sent to the protocol gateway per command",
	}, []string{"command"})

	metrics.messagePublishedSuccessCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_connector_gateway_message_published_success_count",
		Help: "The number of messages published to the MQTT broker",
	})

	metrics.messagePublishedFailureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_connector_gateway_message_published_failure_count",
		Help: "The number of messages that could not be published to the MQTT broker",
	})

	metrics.requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "messaging_connector_gateway_request_duration",
		Help: "The amount of time the gateway took to answer a command",
	}, []string{"command"})

	metrics.connectionLostCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_connector_gateway_connection_lost_count",
		Help: "The number of session broker links that were lost per category",
	}, []string{"category"})

	metrics.openHandlesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "messaging_connector_gateway_open_handle_count",
		Help: "The number of open gateway handles",
	})

	return metrics
}

var (
	metrics = NewMetrics()
)
