package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type dispatcherMetrics struct {
	enqueuedCounter   prometheus.Counter
	attemptCounter    *prometheus.CounterVec
	terminalCounter   *prometheus.CounterVec
	activeJobsGauge   prometheus.Gauge
	attemptDuration   prometheus.Histogram
	requeueFailures   prometheus.Counter
	ackFailureCounter prometheus.Counter
}

var metrics *dispatcherMetrics

func init() {
	metrics = new(dispatcherMetrics)

	metrics.enqueuedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_connector_dispatcher_enqueued_job_count",
		Help: "The number of outbound jobs accepted into the queue",
	})

	metrics.attemptCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_connector_dispatcher_attempt_count",
		Help: "The number of delivery attempts by outcome state",
	}, []string{"state"})

	metrics.terminalCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_connector_dispatcher_terminal_job_count",
		Help: "The number of jobs that reached a terminal state",
	}, []string{"state"})

	metrics.activeJobsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "messaging_connector_dispatcher_active_job_count",
		Help: "The number of jobs currently being attempted",
	})

	metrics.attemptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "messaging_connector_dispatcher_attempt_duration",
		Help: "The amount of time a delivery attempt took",
	})

	metrics.requeueFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_connector_dispatcher_requeue_failure_count",
		Help: "The number of retries that could not be written back to the queue",
	})

	metrics.ackFailureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_connector_dispatcher_ack_failure_count",
		Help: "The number of handled jobs whose acknowledgement failed",
	})
}
