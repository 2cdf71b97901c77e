package credentials

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type credentialStoreMetrics struct {
	loadDuration   *prometheus.HistogramVec
	saveDuration   *prometheus.HistogramVec
	deleteDuration *prometheus.HistogramVec
}

var metrics *credentialStoreMetrics

func init() {
	metrics = new(credentialStoreMetrics)

	metrics.loadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "messaging_connector_credentials_load_duration",
		Help: "The amount of time it took to load the credentials of a connection",
	}, []string{"store"})

	metrics.saveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "messaging_connector_credentials_save_duration",
		Help: "The amount of time it took to save the credentials of a connection",
	}, []string{"store"})

	metrics.deleteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "messaging_connector_credentials_delete_duration",
		Help: "The amount of time it took to delete the credentials of a connection",
	}, []string{"store"})
}
